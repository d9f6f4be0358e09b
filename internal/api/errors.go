// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package api

import "errors"

var (
	// ErrLocationNotFound is returned by a GeoLocator that has no entry for
	// an address.
	ErrLocationNotFound = errors.New("no location for address")

	// errBodyTooLarge rejects proxied request bodies over maxProxyBody.
	errBodyTooLarge = errors.New("request body too large")
)

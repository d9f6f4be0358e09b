// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package tiles

import "errors"

var (
	// ErrZoomTooHigh is returned before any lookup when z exceeds the
	// configured maximum.
	ErrZoomTooHigh = errors.New("zoom level above maximum")

	// ErrBadCoordinates covers unparseable or out-of-grid keys.
	ErrBadCoordinates = errors.New("invalid tile coordinates")

	// ErrInvalidTile means a payload failed integrity validation.
	ErrInvalidTile = errors.New("invalid tile payload")

	// ErrTileNotFound means no layer could produce the tile.
	ErrTileNotFound = errors.New("tile not found")

	// ErrDisabled is returned when tile serving is switched off.
	ErrDisabled = errors.New("tile server disabled")
)

// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

// Package middleware provides http.HandlerFunc middleware for the station
// gateway:
//
//   - Recover: panic to JSON 500
//   - RequestID: X-Request-ID propagation into the logging context
//   - PrometheusMetrics: per-route request metrics
//
// The gateway adapts these to chi with a func(http.Handler) http.Handler
// shim.
package middleware

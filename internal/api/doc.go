// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

/*
Package api implements the station's HTTP gateway.

Every request passes through the same pipeline:

 1. Panic recovery (JSON 500) and request ID assignment
 2. WebSocket upgrade, answered with 503 at the connection cap
 3. CORS headers when enabled; any OPTIONS request is answered with 200
 4. The platform route hook, which may claim the request
 5. The chi route table below, with Prometheus metrics and compression

Routes:

	GET  /                              status page (or bundled index.html)
	GET  /status, /api/status           station status JSON
	GET  /api/clients, /api/devices     connected sessions
	GET  /api/backup/providers          live backup providers
	GET  /api/geoip?ip=X                GeoIP lookup (503 without a database)
	GET  /.well-known/nostr.json?name=X NIP-05 names
	GET  /tiles/{z}/{x}/{y}.png         cached map tiles
	GET  /api/updates/latest            cached release document
	GET  /api/updates/status            update mirror status
	GET  /updates/{filename}            mirrored release assets
	POST /blossom/upload                blob upload (also PUT, rate limited)
	GET  /blossom/{sha256}              blob download (also HEAD)
	DELETE /blossom/*                   always 403
	ANY  /device/{callsign}/*           HTTP proxy to a connected device
	POST /api/clients/{callsign}/kick   loopback only
	POST /api/broadcast                 loopback only
	GET  /metrics                       Prometheus

Failures are JSON bodies of the form {"error": "...", "code": "..."}.

Usage:

	gw := api.New(api.Config{
	    Settings:   srv.Settings,
	    Registry:   registry,
	    Dispatcher: dispatcher,
	    Tiles:      tileCache,
	})
	httpServer := &http.Server{Handler: gw.Handler()}
*/
package api

// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

/*
Package metrics declares the station's Prometheus collectors.

All collectors are registered with the default registry through promauto
and exposed by the gateway at GET /metrics:

	curl http://localhost:8080/metrics | grep station_

Families:
  - station_http_*: gateway requests, latency, in-flight
  - station_ws_*, station_handshakes_total: sessions and protocol frames
  - station_proxy_*: device HTTP proxy correlations
  - station_tile_*: cache sources, size, evictions, origin latency
  - station_update_*: release feed polls and mirrored assets
  - station_blossom_*: blob uploads and storage
  - station_circuit_breaker_*: gobreaker state for origin clients
  - station_janitor_purged_total, station_server_*: maintenance and lifecycle
*/
package metrics

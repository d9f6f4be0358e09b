// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

// Command stationd runs a self-hosted peer station.
//
// Peer devices connect over WebSocket, announce themselves with a signed
// hello and stay reachable through the station's HTTP proxy. The station
// also serves cached map tiles, mirrors release artifacts and keeps a small
// blob store.
//
// # Commands
//
//	stationd serve      run until SIGINT or SIGTERM (SIGHUP restarts)
//	stationd identity   print callsign, npub and hex key
//	stationd version    print build information
//
// # Configuration
//
// Settings are layered, highest priority last:
//   - Built-in defaults
//   - The YAML settings file (--config, default station.yaml)
//   - STATION_* environment variables, e.g. STATION_PORT=9090
//
// The settings file is rewritten when the station generates its identity
// on first run, and holds the private key, so it is created with mode 0600.
//
// # Example
//
//	STATION_LOG_LEVEL=debug stationd serve --config /var/lib/station/station.yaml \
//	    --assets /usr/share/station/web --log-file /var/log/station/station.log
package main

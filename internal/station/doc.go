// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

/*
Package station owns the station lifecycle.

Start loads settings through the platform adapter, binds the listener
(optionally TLS), opens the identity registry and blob store, builds the
session registry, dispatcher, tile cache and update mirror, and runs them
under a supervisor tree:

	station
	├── messaging-layer: session-registry, janitor, update-mirror
	└── api-layer: http-server

Stop tears the tree down, closes every session with 1001, fails pending
proxy requests with protocol.ErrServerStopping and closes the listener
before calling the adapter's OnStop hook.

	srv := station.New(station.Options{Adapter: platform.NewCLI(cfg), Version: version})
	if !srv.Start() {
	    os.Exit(1)
	}
	defer srv.Stop()
*/
package station

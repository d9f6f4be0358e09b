// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

/*
Package services adapts station components to suture.Service.

	HTTPServerService  *http.Server on a pre-bound listener, graceful Shutdown
	RegistryService    websocket.Registry.Run broadcast loop
	MirrorService      updates.Mirror.Serve feed poller
	JanitorService     websocket.Registry.Sweep every minute

Each wrapper names itself through fmt.Stringer so suture events identify
the service, and depends only on a one-method interface so tests can use
doubles.
*/
package services

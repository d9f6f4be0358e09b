// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

/*
Package supervisor runs the station's long-lived loops under suture v4.

# Overview

	RootSupervisor ("station")
	├── MessagingSupervisor ("messaging-layer")
	│   ├── RegistryService   broadcast delivery
	│   ├── JanitorService    stale reconnection and provider sweep
	│   └── MirrorService     update feed poller (when enabled)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService pre-bound listener

A failing poller is restarted inside its layer with suture's backoff; the
listener keeps serving.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddMessagingService(services.NewRegistryService(registry))
	tree.AddAPIService(services.NewHTTPServerService(httpServer, listener, 10*time.Second))
	errCh := tree.ServeBackground(ctx)

Supervisor events are logged through sutureslog and the zerolog slog bridge.

# Service Interface

	type Service interface {
	    Serve(ctx context.Context) error
	}

Returning an error restarts the service; returning suture.ErrDoNotRestart
removes it.
*/
package supervisor

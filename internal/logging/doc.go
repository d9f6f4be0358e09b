// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

// Package logging provides the station's global zerolog logger.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "console"})
//	logging.Info().Int("port", 8080).Msg("station listening")
//
// # Host Sink
//
// The embedding host receives a plain copy of each event through SetSink.
// The sink is a zerolog hook, so structured fields are dropped and only the
// level name and message reach the host:
//
//	logging.SetSink(logging.SinkFunc(func(level, msg string) {
//	    adapter.Log(level, msg)
//	}))
//
// # Context Fields
//
// Ctx attaches request_id, session_id and callsign when they are present in
// the context:
//
//	ctx = logging.ContextWithSession(ctx, sess.ID(), sess.Callsign())
//	logging.Ctx(ctx).Debug().Msg("frame dispatched")
//
// # slog Adapter
//
// NewSlogLogger bridges slog consumers such as sutureslog onto zerolog.
//
// # Thread Safety
//
// All exported functions are safe for concurrent use.
package logging

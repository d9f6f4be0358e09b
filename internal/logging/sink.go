// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package logging

import (
	"github.com/rs/zerolog"
)

// Sink receives a plain (level, message) pair for every log event.
//
// The host process supplies a Sink through its platform adapter. A GUI host
// renders the lines in a log panel; the CLI host appends them to a rotating
// file. Implementations must be safe for concurrent use and must not log
// through this package.
type Sink interface {
	Log(level, message string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(level, message string)

// Log implements Sink.
func (f SinkFunc) Log(level, message string) {
	f(level, message)
}

// sinkHook forwards zerolog events to a Sink.
type sinkHook struct {
	sink Sink
}

// Run implements zerolog.Hook.
func (h sinkHook) Run(_ *zerolog.Event, level zerolog.Level, message string) {
	if level == zerolog.NoLevel || message == "" {
		return
	}
	h.sink.Log(level.String(), message)
}

// SetSink installs s as the global log sink, replacing any previous one.
// Passing nil removes the sink.
func SetSink(s Sink) {
	mu.Lock()
	defer mu.Unlock()

	sink = s
	log = withSink(base)
}

// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	sessionIDKey contextKey = "session_id"
	callsignKey  contextKey = "callsign"
)

// GenerateRequestID creates a new request ID.
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithRequestID returns a new context carrying an HTTP request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithSession returns a context tagged with a WebSocket session and,
// once the hello handshake has completed, the device callsign.
//
//	ctx = logging.ContextWithSession(ctx, sess.ID(), sess.Callsign())
func ContextWithSession(ctx context.Context, sessionID, callsign string) context.Context {
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	if callsign != "" {
		ctx = context.WithValue(ctx, callsignKey, callsign)
	}
	return ctx
}

// SessionIDFromContext retrieves the session ID from context.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

// CallsignFromContext retrieves the device callsign from context.
func CallsignFromContext(ctx context.Context) string {
	if cs, ok := ctx.Value(callsignKey).(string); ok {
		return cs
	}
	return ""
}

// Ctx returns the global logger with any request_id, session_id and callsign
// found in ctx attached as fields.
//
//	logging.Ctx(ctx).Info().Msg("tile served")
func Ctx(ctx context.Context) *zerolog.Logger {
	l := CtxWith(ctx).Logger()
	return &l
}

// CtxWith returns a logger context builder with context values pre-populated.
//
//	logger := logging.CtxWith(ctx).Str("path", p).Logger()
func CtxWith(ctx context.Context) zerolog.Context {
	logCtx := Logger().With()
	if v := RequestIDFromContext(ctx); v != "" {
		logCtx = logCtx.Str("request_id", v)
	}
	if v := SessionIDFromContext(ctx); v != "" {
		logCtx = logCtx.Str("session_id", v)
	}
	if v := CallsignFromContext(ctx); v != "" {
		logCtx = logCtx.Str("callsign", v)
	}
	return logCtx
}

// WithComponent creates a child logger with a component field.
//
//	tilesLog := logging.WithComponent("tiles")
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}

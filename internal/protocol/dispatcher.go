// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package protocol

import (
	"bytes"
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/station/internal/logging"
	"github.com/tomtom215/station/internal/metrics"
	"github.com/tomtom215/station/internal/websocket"
)

// IdentityRegistry binds callsigns and nicknames to public keys. Register
// returns identity.ErrNameTaken when another key holds the callsign.
type IdentityRegistry interface {
	Register(callsign, npub string) error
	RegisterNickname(nickname, npub string) error
}

// ExtensionHandler receives typed frames the dispatcher does not know. It
// returns false when it did not handle the frame either.
type ExtensionHandler interface {
	HandleMessage(ctx context.Context, sessionID, msgType string, raw []byte) bool
}

// StationInfo is reported in hello_ack.
type StationInfo struct {
	Callsign string
	Name     string
}

// Config wires a Dispatcher to its collaborators. Registry and Pending are
// required; the rest may be nil. Without Identities callsigns are not
// protected against other keys.
type Config struct {
	Registry   *websocket.Registry
	Pending    *PendingTable
	Identities IdentityRegistry
	Relay      websocket.Relay
	Extension  ExtensionHandler
	Station    func() StationInfo
}

// Dispatcher decodes device frames and routes them. It implements
// websocket.FrameHandler.
type Dispatcher struct {
	registry   *websocket.Registry
	pending    *PendingTable
	identities IdentityRegistry
	relay      websocket.Relay
	extension  ExtensionHandler
	station    func() StationInfo
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	station := cfg.Station
	if station == nil {
		station = func() StationInfo { return StationInfo{} }
	}
	return &Dispatcher{
		registry:   cfg.Registry,
		pending:    cfg.Pending,
		identities: cfg.Identities,
		relay:      cfg.Relay,
		extension:  cfg.Extension,
		station:    station,
	}
}

// HandleFrame routes one text frame. A JSON array goes to the relay
// verbatim; an object is routed by its "type". Malformed frames are logged
// and dropped; the connection stays open.
func (d *Dispatcher) HandleFrame(ctx context.Context, s *websocket.Session, frame []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Ctx(ctx).Error().Interface("panic", rec).Msg("frame handler panic")
		}
	}()

	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 {
		return
	}

	switch trimmed[0] {
	case '[':
		metrics.WSMessagesReceived.WithLabelValues("relay").Inc()
		if d.relay == nil {
			logging.Ctx(ctx).Debug().Msg("relay frame dropped: no relay configured")
			return
		}
		d.relay.HandleFrame(ctx, s.ID(), trimmed)
		return
	case '{':
	default:
		logging.Ctx(ctx).Warn().Int("bytes", len(trimmed)).Msg("malformed frame: not JSON")
		return
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("malformed frame")
		return
	}

	msgType := ParseMessageType(env.Type)
	metrics.WSMessagesReceived.WithLabelValues(msgType.String()).Inc()

	switch msgType {
	case TypeHello:
		d.handleHello(ctx, s, trimmed)
	case TypePing:
		if err := s.Send(PongMessage{Type: TypePong.String(), Timestamp: time.Now().UnixMilli()}); err != nil {
			logging.Ctx(ctx).Debug().Err(err).Msg("pong not sent")
		}
	case TypePong:
	case TypeHTTPResponse:
		d.handleHTTPResponse(ctx, trimmed)
	case TypeBackupProviderAnnounce:
		d.handleProviderAnnounce(ctx, s, trimmed)
	default:
		if d.extension != nil && d.extension.HandleMessage(ctx, s.ID(), env.Type, trimmed) {
			return
		}
		logging.Ctx(ctx).Debug().Str("type", env.Type).Msg("unhandled message type")
	}
}

func (d *Dispatcher) handleHTTPResponse(ctx context.Context, frame []byte) {
	var resp HTTPResponseMessage
	if err := json.Unmarshal(frame, &resp); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("malformed HTTP_RESPONSE")
		return
	}
	if !d.pending.Resolve(resp.RequestID, resp) {
		logging.Ctx(ctx).Debug().Str("request_id", resp.RequestID).Msg("HTTP_RESPONSE for unknown request")
	}
}

func (d *Dispatcher) handleProviderAnnounce(ctx context.Context, s *websocket.Session, frame []byte) {
	id := s.Identity()
	if id.Callsign == "" {
		logging.Ctx(ctx).Debug().Msg("provider announce ignored: session has no callsign")
		return
	}
	var msg ProviderAnnounceMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("malformed backup_provider_announce")
		return
	}
	d.registry.Providers().Announce(websocket.ProviderEntry{
		Callsign:              id.Callsign,
		Npub:                  id.Npub,
		MaxTotalStorageBytes:  msg.MaxTotalStorageBytes,
		MaxClientStorageBytes: msg.MaxClientStorageBytes,
		MaxSnapshots:          msg.MaxSnapshots,
		AcceptingClients:      msg.AcceptingClients,
	})
}

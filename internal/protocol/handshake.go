// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package protocol

import (
	"context"
	"errors"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/station/internal/identity"
	"github.com/tomtom215/station/internal/logging"
	"github.com/tomtom215/station/internal/metrics"
	"github.com/tomtom215/station/internal/websocket"
)

// helloNpub resolves the device key: the direct field, then an "npub" tag
// on the embedded event, then the event's hex pubkey.
func helloNpub(msg *HelloMessage) string {
	if npub := strings.TrimSpace(msg.Npub); npub != "" {
		return npub
	}
	if msg.Event == nil {
		return ""
	}
	if npub := strings.TrimSpace(msg.Event.Tag("npub")); npub != "" {
		return npub
	}
	if msg.Event.Pubkey != "" {
		if npub, err := identity.HexToNpub(msg.Event.Pubkey); err == nil {
			return npub
		}
	}
	return ""
}

// helloField prefers the direct field over an event tag.
func helloField(direct string, ev *NostrEvent, tag string) string {
	if direct != "" || ev == nil {
		return direct
	}
	return ev.Tag(tag)
}

func (d *Dispatcher) handleHello(ctx context.Context, s *websocket.Session, frame []byte) {
	var msg HelloMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("malformed hello")
		return
	}

	station := d.station()
	ack := HelloAck{
		Type:        TypeHelloAck,
		StationID:   station.Callsign,
		StationName: station.Name,
		Version:     ProtocolVersion,
	}

	npub := helloNpub(&msg)
	if npub == "" {
		metrics.HandshakesTotal.WithLabelValues(ErrCodeMissingNpub).Inc()
		ack.Error = ErrCodeMissingNpub
		ack.Message = "hello must carry an npub or a signed event"
		d.send(ctx, s, ack)
		return
	}

	callsign := strings.ToUpper(strings.TrimSpace(helloField(msg.Callsign, msg.Event, "callsign")))
	if callsign == "" {
		callsign = identity.Callsign(npub)
	}

	if callsign != "" && !identity.ValidCallsign(callsign) {
		metrics.HandshakesTotal.WithLabelValues(ErrCodeInvalidCallsign).Inc()
		ack.Error = ErrCodeInvalidCallsign
		ack.Message = "callsign must be 1 to 64 characters without spaces"
		d.send(ctx, s, ack)
		return
	}

	// Claiming the callsign is the collision check: the registry binds it
	// or reports the other key under one lock.
	if d.identities != nil && callsign != "" {
		if err := d.identities.Register(callsign, npub); err != nil {
			if errors.Is(err, identity.ErrNameTaken) {
				d.rejectMismatch(ctx, s, ack, callsign, npub)
				return
			}
			metrics.HandshakesTotal.WithLabelValues(ErrCodeInvalidCallsign).Inc()
			logging.Ctx(ctx).Warn().Err(err).Str("callsign", callsign).Msg("hello rejected: callsign not registrable")
			ack.Error = ErrCodeInvalidCallsign
			ack.Message = err.Error()
			d.send(ctx, s, ack)
			return
		}
	}

	nickname := strings.TrimSpace(helloField(msg.Nickname, msg.Event, "nickname"))
	restored := d.registry.Authenticate(s, websocket.Identity{
		Callsign:   callsign,
		Nickname:   nickname,
		Color:      helloField(msg.Color, msg.Event, "color"),
		Npub:       npub,
		DeviceType: helloField(msg.DeviceType, msg.Event, "device_type"),
		Platform:   helloField(msg.Platform, msg.Event, "platform"),
		Version:    helloField(msg.Version, msg.Event, "version"),
		Latitude:   msg.Latitude,
		Longitude:  msg.Longitude,
	})

	if d.identities != nil && nickname != "" && !strings.EqualFold(nickname, callsign) {
		if err := d.identities.RegisterNickname(nickname, npub); err != nil {
			ev := logging.Ctx(ctx).Debug()
			if errors.Is(err, identity.ErrNameTaken) {
				ev = logging.Ctx(ctx).Warn()
			}
			ev.Err(err).Str("nickname", nickname).Msg("nickname registration skipped")
		}
	}

	metrics.HandshakesTotal.WithLabelValues("ok").Inc()
	logging.Ctx(logging.ContextWithSession(ctx, s.ID(), callsign)).Info().
		Str("nickname", nickname).
		Bool("restored", restored).
		Msg("hello accepted")

	ack.Success = true
	ack.Callsign = callsign
	d.send(ctx, s, ack)
}

// rejectMismatch answers a callsign held by another key and force-closes
// the session.
func (d *Dispatcher) rejectMismatch(ctx context.Context, s *websocket.Session, ack HelloAck, callsign, npub string) {
	metrics.HandshakesTotal.WithLabelValues(ErrCodeCallsignNpubMismatch).Inc()
	logging.Ctx(ctx).Warn().Str("callsign", callsign).Str("npub", npub).
		Msg("hello rejected: callsign bound to another key")
	ack.Error = ErrCodeCallsignNpubMismatch
	ack.Message = "callsign " + callsign + " is registered to a different key"
	d.send(ctx, s, ack)
	d.registry.Remove(s.ID(), websocket.ReasonCallsignMismatch)
}

func (d *Dispatcher) send(ctx context.Context, s *websocket.Session, v interface{}) {
	if err := s.Send(v); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("reply not sent")
	}
}

// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package websocket

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/station/internal/logging"
	"github.com/tomtom215/station/internal/metrics"
)

// Removal reasons, logged and used as metric labels.
const (
	ReasonClosed           = "connection closed"
	ReasonError            = "error"
	ReasonKicked           = "kicked"
	ReasonCallsignMismatch = "callsign_npub_mismatch"
	ReasonShutdown         = "server stopping"
)

// Application close codes.
const (
	CloseKicked           = 4000
	CloseCallsignMismatch = 4001
)

// MessageTypeBroadcast is the envelope type for operator broadcasts.
const MessageTypeBroadcast = "broadcast"

// ErrTooManyConnections is returned by Register at the connection cap.
var ErrTooManyConnections = errors.New("connection limit reached")

// Relay is the pub/sub relay collaborator. Sessions are registered with it
// on connect so relay replies can be pushed back to the device.
type Relay interface {
	RegisterConnection(sessionID string, send func([]byte) error)
	UnregisterConnection(sessionID string)
	HandleFrame(ctx context.Context, sessionID string, frame []byte)
}

// BroadcastMessage is the envelope delivered to every session.
type BroadcastMessage struct {
	Type      string `json:"type"`
	From      string `json:"from"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// SessionInfo is the public view of a session.
type SessionInfo struct {
	ID             string     `json:"id"`
	Callsign       string     `json:"callsign,omitempty"`
	Nickname       string     `json:"nickname,omitempty"`
	Color          string     `json:"color,omitempty"`
	Npub           string     `json:"npub,omitempty"`
	DeviceType     string     `json:"device_type,omitempty"`
	Platform       string     `json:"platform,omitempty"`
	Version        string     `json:"version,omitempty"`
	Address        string     `json:"address"`
	ConnectionType string     `json:"connection_type"`
	Latitude       *float64   `json:"latitude"`
	Longitude      *float64   `json:"longitude"`
	ConnectedAt    time.Time  `json:"connected_at"`
	LastActivity   *time.Time `json:"last_activity"`
}

// Options configures a Registry.
type Options struct {
	// MaxConnections caps live sessions. Zero means unlimited.
	MaxConnections int

	// Relay receives connection lifecycle events. May be nil.
	Relay Relay

	// ReconnectGrace defaults to ReconnectGrace.
	ReconnectGrace time.Duration

	// ProviderTTL defaults to ProviderTTL.
	ProviderTTL time.Duration
}

// Registry tracks live sessions together with reconnection records and the
// backup-provider directory.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	callsigns map[string]string // upper(callsign) -> session id

	maxConns    int
	relay       Relay
	disconnects *DisconnectLog
	providers   *ProviderDirectory
	broadcast   chan []byte
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.ReconnectGrace <= 0 {
		opts.ReconnectGrace = ReconnectGrace
	}
	if opts.ProviderTTL <= 0 {
		opts.ProviderTTL = ProviderTTL
	}
	return &Registry{
		sessions:    make(map[string]*Session),
		callsigns:   make(map[string]string),
		maxConns:    opts.MaxConnections,
		relay:       opts.Relay,
		disconnects: NewDisconnectLog(opts.ReconnectGrace),
		providers:   NewProviderDirectory(opts.ProviderTTL),
		broadcast:   make(chan []byte, 256),
	}
}

// Disconnects exposes the reconnection log.
func (r *Registry) Disconnects() *DisconnectLog { return r.disconnects }

// Providers exposes the backup-provider directory.
func (r *Registry) Providers() *ProviderDirectory { return r.providers }

// Full reports whether the connection cap is reached.
func (r *Registry) Full() bool {
	if r.maxConns <= 0 {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions) >= r.maxConns
}

// Register adds an anonymous session.
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	if r.maxConns > 0 && len(r.sessions) >= r.maxConns {
		r.mu.Unlock()
		metrics.WSConnectionsRejected.WithLabelValues("capacity").Inc()
		return ErrTooManyConnections
	}
	r.sessions[s.id] = s
	total := len(r.sessions)
	r.mu.Unlock()

	if r.relay != nil {
		r.relay.RegisterConnection(s.id, s.SendRaw)
	}
	metrics.RecordSessionOpened(string(s.class))
	logging.Info().
		Str("session_id", s.id).
		Str("address", s.remoteAddr).
		Str("connection_type", string(s.class)).
		Int("total_sessions", total).
		Msg("websocket session opened")
	return nil
}

// Authenticate attaches a hello identity to s and indexes its callsign.
// When the callsign dropped within the grace window, the original connect
// time is restored and restored is true.
func (r *Registry) Authenticate(s *Session, id Identity) (restored bool) {
	var connectedAt time.Time
	if rec, ok := r.disconnects.Take(id.Callsign); ok {
		connectedAt = rec.ConnectedAt
		restored = true
		metrics.ReconnectsRestored.Inc()
	}
	prev := strings.ToUpper(s.Identity().Callsign)
	s.setIdentity(id, connectedAt)

	r.mu.Lock()
	if prev != "" && r.callsigns[prev] == s.id {
		delete(r.callsigns, prev)
	}
	if id.Callsign != "" {
		r.callsigns[strings.ToUpper(id.Callsign)] = s.id
	}
	r.mu.Unlock()
	return restored
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// ByCallsign returns the newest authenticated session for callsign.
func (r *Registry) ByCallsign(callsign string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.callsigns[strings.ToUpper(callsign)]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[id]
	return s, ok
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Remove tears down session id. It unregisters from the relay, records the
// disconnect, purges the provider entry, closes the socket and logs reason.
// Removing an unknown or already removed session is a no-op returning false.
//
// A callsign that has since been claimed by a newer session keeps that
// session's reconnection state and provider entry.
func (r *Registry) Remove(id, reason string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, id)
	callsign := s.Callsign()
	owner := false
	if callsign != "" {
		key := strings.ToUpper(callsign)
		if r.callsigns[key] == id {
			delete(r.callsigns, key)
			owner = true
		}
	}
	r.mu.Unlock()

	if r.relay != nil {
		r.relay.UnregisterConnection(id)
	}
	if owner {
		r.disconnects.Record(callsign, s.ConnectedAt())
		r.providers.Remove(callsign)
	}
	s.Close(closeCode(reason), reason)

	metrics.RecordSessionClosed(reason)
	logging.Info().
		Str("session_id", id).
		Str("callsign", callsign).
		Str("reason", reason).
		Msg("websocket session removed")
	return true
}

func closeCode(reason string) int {
	switch reason {
	case ReasonKicked:
		return CloseKicked
	case ReasonCallsignMismatch:
		return CloseCallsignMismatch
	case ReasonShutdown:
		return 1001 // going away
	default:
		return 1000
	}
}

// Kick removes the session holding callsign.
func (r *Registry) Kick(callsign string) bool {
	s, ok := r.ByCallsign(callsign)
	if !ok {
		return false
	}
	return r.Remove(s.id, ReasonKicked)
}

// CloseAll removes every session with reason and returns how many were
// removed.
func (r *Registry) CloseAll(reason string) int {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	n := 0
	for _, id := range ids {
		if r.Remove(id, reason) {
			n++
		}
	}
	return n
}

// Sessions returns a snapshot ordered by session id, which is connect order.
func (r *Registry) Sessions() []SessionInfo {
	r.mu.RLock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })

	out := make([]SessionInfo, 0, len(list))
	for _, s := range list {
		out = append(out, s.info())
	}
	return out
}

func (s *Session) info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := SessionInfo{
		ID:             s.id,
		Callsign:       s.identity.Callsign,
		Nickname:       s.identity.Nickname,
		Color:          s.identity.Color,
		Npub:           s.identity.Npub,
		DeviceType:     s.identity.DeviceType,
		Platform:       s.identity.Platform,
		Version:        s.identity.Version,
		Address:        s.remoteAddr,
		ConnectionType: string(s.class),
		Latitude:       s.identity.Latitude,
		Longitude:      s.identity.Longitude,
		ConnectedAt:    s.connectedAt,
	}
	if !s.lastActivity.IsZero() {
		la := s.lastActivity
		info.LastActivity = &la
	}
	return info
}

// Broadcast queues an operator message for every session.
func (r *Registry) Broadcast(from, message string) error {
	frame, err := json.Marshal(BroadcastMessage{
		Type:      MessageTypeBroadcast,
		From:      from,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	select {
	case r.broadcast <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Run delivers queued broadcasts until ctx is canceled. It is meant to run
// under the supervisor.
func (r *Registry) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			logging.Info().
				Str("component", "session-registry").
				Int("sessions", r.Count()).
				Msg("broadcast loop stopped")
			return ctx.Err()
		case frame := <-r.broadcast:
			r.deliver(frame)
		}
	}
}

// deliver sends frame to every session. A failed recipient is marked stale
// and logged but stays registered.
func (r *Registry) deliver(frame []byte) {
	r.mu.RLock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })
	for _, s := range list {
		if err := s.SendRaw(frame); err != nil {
			s.markStale()
			logging.Warn().Err(err).Str("session_id", s.id).Msg("broadcast delivery failed")
		}
	}
}

// Sweep purges stale reconnection records and expired provider entries.
func (r *Registry) Sweep() (records, providers int) {
	records = r.disconnects.Purge()
	providers = r.providers.Purge()
	if records > 0 {
		metrics.JanitorPurged.WithLabelValues("disconnect").Add(float64(records))
	}
	if providers > 0 {
		metrics.JanitorPurged.WithLabelValues("provider").Add(float64(providers))
	}
	return records, providers
}

// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package websocket

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/station/internal/logging"
	"github.com/tomtom215/station/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024
	sendBuffer     = 256
)

var (
	// ErrSessionClosed is returned by Send after Close.
	ErrSessionClosed = errors.New("session closed")

	// ErrSendBufferFull is returned when the peer is not draining frames.
	ErrSendBufferFull = errors.New("session send buffer full")
)

// ConnectionClass tells whether a peer reached the station over a local
// network.
type ConnectionClass string

const (
	ClassLocal    ConnectionClass = "local"
	ClassInternet ConnectionClass = "internet"
	ClassUnknown  ConnectionClass = "unknown"
)

// ClassifyAddress classifies a remote "host:port" or bare host.
func ClassifyAddress(remoteAddr string) ConnectionClass {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return ClassUnknown
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() {
		return ClassLocal
	}
	return ClassInternet
}

// Identity is what a device declares in its hello.
type Identity struct {
	Callsign   string
	Nickname   string
	Color      string
	Npub       string
	DeviceType string
	Platform   string
	Version    string
	Latitude   *float64
	Longitude  *float64
}

// FrameHandler receives every text frame read from a session.
type FrameHandler interface {
	HandleFrame(ctx context.Context, s *Session, frame []byte)
}

// FrameHandlerFunc adapts a function to FrameHandler.
type FrameHandlerFunc func(ctx context.Context, s *Session, frame []byte)

// HandleFrame calls f.
func (f FrameHandlerFunc) HandleFrame(ctx context.Context, s *Session, frame []byte) {
	f(ctx, s, frame)
}

// Session is one device connection. It is anonymous until Authenticate is
// called after a successful hello.
type Session struct {
	id         string
	conn       *websocket.Conn
	send       chan []byte
	done       chan struct{}
	closeOnce  sync.Once
	started    atomic.Bool
	remoteAddr string
	class      ConnectionClass

	mu            sync.RWMutex
	identity      Identity
	authenticated bool
	connectedAt   time.Time
	lastActivity  time.Time
	closeCode     int
	closeText     string
}

// NewSession wraps an upgraded connection. conn may be nil for sessions
// that are never started.
func NewSession(conn *websocket.Conn, remoteAddr string) *Session {
	now := time.Now()
	return &Session{
		id:           newSessionID(),
		conn:         conn,
		send:         make(chan []byte, sendBuffer),
		done:         make(chan struct{}),
		remoteAddr:   remoteAddr,
		class:        ClassifyAddress(remoteAddr),
		connectedAt:  now,
		lastActivity: now,
	}
}

// newSessionID returns a time-ordered id so listings sort by connect order.
func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() string { return s.remoteAddr }

// Class returns the connection class.
func (s *Session) Class() ConnectionClass { return s.class }

// Identity returns a copy of the declared identity.
func (s *Session) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Callsign returns the authenticated callsign, or "".
func (s *Session) Callsign() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.Callsign
}

// Authenticated reports whether a hello succeeded on this session.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// ConnectedAt returns the connect time, which survives a reconnect inside
// the grace window.
func (s *Session) ConnectedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connectedAt
}

// LastActivity returns when the last frame arrived. A zero time marks a
// session whose last send failed.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// Touch records inbound activity.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) markStale() {
	s.mu.Lock()
	s.lastActivity = time.Time{}
	s.mu.Unlock()
}

func (s *Session) setIdentity(id Identity, connectedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
	s.authenticated = true
	if !connectedAt.IsZero() {
		s.connectedAt = connectedAt
	}
}

// Send marshals v and queues it for the writer.
func (s *Session) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.SendRaw(data)
}

// SendRaw queues a text frame without blocking.
func (s *Session) SendRaw(frame []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.send <- frame:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		metrics.WSSendFailures.Inc()
		return ErrSendBufferFull
	}
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close flushes frames already queued, sends a close frame with code and
// text, and tears down the socket. Only the first call has any effect.
func (s *Session) Close(code int, text string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closeCode, s.closeText = code, text
		s.mu.Unlock()
		close(s.done)
		if s.conn != nil && !s.started.Load() {
			_ = s.conn.Close()
		}
	})
}

// Start launches the read and write loops. onEnd runs once when the read
// loop exits, with "connection closed" for a close frame and "error" for
// anything else.
func (s *Session) Start(ctx context.Context, handler FrameHandler, onEnd func(reason string)) {
	ctx = logging.ContextWithSession(ctx, s.id, "")
	s.started.Store(true)
	go s.writePump()
	go s.readPump(ctx, handler, onEnd)
}

func (s *Session) readPump(ctx context.Context, handler FrameHandler, onEnd func(reason string)) {
	reason := ReasonClosed
	defer func() {
		if onEnd != nil {
			onEnd(reason)
		}
	}()

	s.conn.SetReadLimit(maxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		reason = ReasonError
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, frame, err := s.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			switch {
			case errors.As(err, &closeErr):
				reason = ReasonClosed
			case isClosedLocally(s):
				reason = ReasonClosed
			default:
				reason = ReasonError
				logging.Ctx(ctx).Debug().Err(err).Msg("websocket read failed")
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		if msgType != websocket.TextMessage {
			continue
		}
		s.Touch()
		if handler != nil {
			handler.HandleFrame(logging.ContextWithSession(ctx, s.id, s.Callsign()), s, frame)
		}
	}
}

func isClosedLocally(s *Session) bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			s.flushAndClose()
			return

		case frame := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logging.Debug().Err(err).Str("session_id", s.id).Msg("websocket write failed")
				return
			}
			metrics.WSMessagesSent.Inc()

		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// flushAndClose writes whatever is still queued, then the close frame.
func (s *Session) flushAndClose() {
	deadline := time.Now().Add(writeWait)
	_ = s.conn.SetWriteDeadline(deadline)
	for {
		select {
		case frame := <-s.send:
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
			metrics.WSMessagesSent.Inc()
			continue
		default:
		}
		break
	}
	s.mu.RLock()
	code, text := s.closeCode, s.closeText
	s.mu.RUnlock()
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package websocket

import (
	"strings"
	"sync"
	"time"
)

// ReconnectGrace is how long a DisconnectRecord can restore a connect time.
const ReconnectGrace = 5 * time.Minute

// DisconnectRecord remembers when a callsign dropped and when it had first
// connected.
type DisconnectRecord struct {
	Callsign       string    `json:"callsign"`
	DisconnectedAt time.Time `json:"disconnected_at"`
	ConnectedAt    time.Time `json:"connected_at"`
}

// DisconnectLog holds one record per callsign (case-insensitive). Records
// older than the grace window are never applied; they are purged lazily on
// Record and Take, and eagerly by Purge.
type DisconnectLog struct {
	mu      sync.Mutex
	grace   time.Duration
	records map[string]DisconnectRecord
	now     func() time.Time
}

// NewDisconnectLog creates a log with the given grace window.
func NewDisconnectLog(grace time.Duration) *DisconnectLog {
	return &DisconnectLog{
		grace:   grace,
		records: make(map[string]DisconnectRecord),
		now:     time.Now,
	}
}

// Record stores a disconnect for callsign.
func (l *DisconnectLog) Record(callsign string, connectedAt time.Time) {
	if callsign == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.purgeLocked(now)
	l.records[strings.ToUpper(callsign)] = DisconnectRecord{
		Callsign:       callsign,
		DisconnectedAt: now,
		ConnectedAt:    connectedAt,
	}
}

// Take consumes the record for callsign if it is still inside the grace
// window. A stale record is discarded and reported as absent.
func (l *DisconnectLog) Take(callsign string) (DisconnectRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := strings.ToUpper(callsign)
	rec, ok := l.records[key]
	if ok {
		delete(l.records, key)
	}
	l.purgeLocked(now)
	if !ok || now.Sub(rec.DisconnectedAt) > l.grace {
		return DisconnectRecord{}, false
	}
	return rec, true
}

// Purge drops every stale record and returns how many went.
func (l *DisconnectLog) Purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.purgeLocked(l.now())
}

// Len returns the number of held records, stale ones included.
func (l *DisconnectLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func (l *DisconnectLog) purgeLocked(now time.Time) int {
	n := 0
	for k, rec := range l.records {
		if now.Sub(rec.DisconnectedAt) > l.grace {
			delete(l.records, k)
			n++
		}
	}
	return n
}

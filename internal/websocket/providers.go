// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package websocket

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// ProviderTTL is how long an announcement stays listed.
const ProviderTTL = 90 * time.Second

// ProviderEntry advertises a peer willing to store backups for others.
type ProviderEntry struct {
	Callsign              string    `json:"callsign"`
	Npub                  string    `json:"npub,omitempty"`
	MaxTotalStorageBytes  int64     `json:"max_total_storage_bytes"`
	MaxClientStorageBytes int64     `json:"max_client_storage_bytes"`
	MaxSnapshots          int       `json:"max_snapshots"`
	AcceptingClients      bool      `json:"accepting_clients"`
	LastSeen              time.Time `json:"last_seen"`
}

// ProviderDirectory is the ephemeral backup-provider listing keyed by
// callsign.
type ProviderDirectory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]ProviderEntry
	now     func() time.Time
}

// NewProviderDirectory creates an empty directory.
func NewProviderDirectory(ttl time.Duration) *ProviderDirectory {
	return &ProviderDirectory{
		ttl:     ttl,
		entries: make(map[string]ProviderEntry),
		now:     time.Now,
	}
}

// Announce inserts or refreshes an entry. Entries without a callsign are
// ignored.
func (d *ProviderDirectory) Announce(e ProviderEntry) bool {
	if e.Callsign == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	e.LastSeen = d.now()
	d.entries[strings.ToUpper(e.Callsign)] = e
	return true
}

// Remove drops the entry for callsign.
func (d *ProviderDirectory) Remove(callsign string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, strings.ToUpper(callsign))
}

// List purges expired entries and returns the rest sorted by callsign.
func (d *ProviderDirectory) List() []ProviderEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.purgeLocked()
	out := make([]ProviderEntry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Callsign < out[j].Callsign })
	return out
}

// Purge drops expired entries and returns how many went.
func (d *ProviderDirectory) Purge() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.purgeLocked()
}

func (d *ProviderDirectory) purgeLocked() int {
	now := d.now()
	n := 0
	for k, e := range d.entries {
		if now.Sub(e.LastSeen) > d.ttl {
			delete(d.entries, k)
			n++
		}
	}
	return n
}

// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/station/internal/logging"
)

const nameKeyPrefix = "name:"

// Registration kinds.
const (
	KindCallsign = "callsign"
	KindNickname = "nickname"
)

// Registry errors.
var (
	ErrNameTaken   = errors.New("name already registered to a different key")
	ErrInvalidName = errors.New("invalid name")
)

var namePattern = regexp.MustCompile(`^[a-z0-9._-]{1,64}$`)

// Registration binds a lower-cased name to a public key.
type Registration struct {
	Name         string    `json:"name"`
	Npub         string    `json:"npub"`
	Hex          string    `json:"hex"`
	Kind         string    `json:"kind"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Registry maps callsigns and nicknames to public keys. Names are
// case-insensitive. When constructed with a badger handle every registration
// is written through and reloaded on the next start.
type Registry struct {
	mu    sync.RWMutex
	names map[string]Registration
	db    *badger.DB
}

// NewRegistry creates a registry. db may be nil for a memory-only registry.
func NewRegistry(db *badger.DB) (*Registry, error) {
	r := &Registry{
		names: make(map[string]Registration),
		db:    db,
	}
	if db == nil {
		return r, nil
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) load() error {
	return r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(nameKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var reg Registration
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &reg)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("skipping unreadable registration")
				continue
			}
			r.names[reg.Name] = reg
		}
		return nil
	})
}

// NormalizeName lower-cases and trims a name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CheckCollision reports whether name is already bound to a key other than
// npub.
func (r *Registry) CheckCollision(name, npub string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.names[NormalizeName(name)]
	return ok && reg.Npub != npub
}

// ValidCallsign reports whether callsign can be bound: 1 to 64 printable
// characters without spaces.
func ValidCallsign(callsign string) bool {
	key := NormalizeName(callsign)
	if key == "" || utf8.RuneCountInString(key) > 64 {
		return false
	}
	for _, c := range key {
		if unicode.IsSpace(c) || !unicode.IsPrint(c) {
			return false
		}
	}
	return true
}

// Register binds a callsign to npub, or returns ErrNameTaken when another
// key holds it. The check and the binding happen under one lock. Any
// non-empty key is accepted; only keys that decode as npub are published
// through NIP-05.
func (r *Registry) Register(callsign, npub string) error {
	if !ValidCallsign(callsign) {
		return fmt.Errorf("%w: %q", ErrInvalidName, callsign)
	}
	npub = strings.TrimSpace(npub)
	if npub == "" {
		return fmt.Errorf("%w: empty npub", ErrInvalidKey)
	}
	pubHex, err := NpubToHex(npub)
	if err != nil {
		pubHex = ""
	}
	return r.bind(NormalizeName(callsign), npub, pubHex, KindCallsign)
}

// RegisterNickname binds a nickname to npub. Nicknames are only registered
// when they are valid well-known names held by a decodable key.
func (r *Registry) RegisterNickname(nickname, npub string) error {
	key := NormalizeName(nickname)
	if !namePattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidName, nickname)
	}
	pubHex, err := NpubToHex(npub)
	if err != nil {
		return err
	}
	return r.bind(key, npub, pubHex, KindNickname)
}

func (r *Registry) bind(key, npub, pubHex, kind string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.names[key]; ok {
		if existing.Npub != npub {
			return fmt.Errorf("%w: %s", ErrNameTaken, key)
		}
		return nil
	}

	reg := Registration{
		Name:         key,
		Npub:         npub,
		Hex:          pubHex,
		Kind:         kind,
		RegisteredAt: time.Now().UTC(),
	}
	r.names[key] = reg
	// The in-memory binding holds for this run even when the write fails.
	if err := r.persist(reg); err != nil {
		logging.Warn().Err(err).Str("name", key).Msg("registration not persisted")
	}
	return nil
}

func (r *Registry) persist(reg Registration) error {
	if r.db == nil {
		return nil
	}
	data, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("marshal registration: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(nameKeyPrefix+reg.Name), data)
	})
	if err != nil {
		return fmt.Errorf("persist registration: %w", err)
	}
	return nil
}

// Lookup returns the registration for name.
func (r *Registry) Lookup(name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.names[NormalizeName(name)]
	return reg, ok
}

// Len returns the number of registered names.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// OpenStore opens a badger database for registry persistence under dir.
func OpenStore(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open registry store: %w", err)
	}
	return db, nil
}

// badgerLogger routes badger's internal logging through zerolog.
type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...interface{}) {
	logging.Error().Str("component", "badger").Msgf(strings.TrimSpace(f), v...)
}

func (badgerLogger) Warningf(f string, v ...interface{}) {
	logging.Warn().Str("component", "badger").Msgf(strings.TrimSpace(f), v...)
}

func (badgerLogger) Infof(f string, v ...interface{}) {
	logging.Debug().Str("component", "badger").Msgf(strings.TrimSpace(f), v...)
}

func (badgerLogger) Debugf(f string, v ...interface{}) {
	logging.Trace().Str("component", "badger").Msgf(strings.TrimSpace(f), v...)
}

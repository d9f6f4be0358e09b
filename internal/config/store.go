// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package config

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/station/internal/identity"
	"github.com/tomtom215/station/internal/logging"
	"github.com/tomtom215/station/internal/validation"
)

// Persistence stores the settings document for the host platform. Load
// returns a nil map and nil error when nothing has been saved yet.
type Persistence interface {
	LoadSettings() (map[string]interface{}, error)
	SaveSettings(doc map[string]interface{}) error
}

// KeyGenerator produces a fresh station key pair.
type KeyGenerator func() (identity.KeyPair, error)

// Store loads and saves Settings through a Persistence. It has no effect on
// a running server; callers pass saved settings to the server themselves.
type Store struct {
	persist Persistence
	newKeys KeyGenerator
	useEnv  bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithoutEnv disables STATION_* environment overrides.
func WithoutEnv() StoreOption {
	return func(s *Store) { s.useEnv = false }
}

// NewStore creates a settings store. A nil keygen falls back to
// identity.GenerateKeyPair.
func NewStore(p Persistence, keygen KeyGenerator, opts ...StoreOption) *Store {
	if keygen == nil {
		keygen = identity.GenerateKeyPair
	}
	s := &Store{persist: p, newKeys: keygen, useEnv: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load builds Settings with layered sources:
//  1. Defaults
//  2. The persisted document, with legacy keys normalized
//  3. STATION_* environment variables
//
// A missing key pair is generated once and saved immediately so later loads
// keep the same identity.
func (s *Store) Load() (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	doc, err := s.persist.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if len(doc) > 0 {
		raw := koanf.New(".")
		if err := raw.Load(confmap.Provider(doc, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to parse settings: %w", err)
		}
		if err := normalizeLegacy(raw); err != nil {
			return nil, err
		}
		if err := k.Merge(raw); err != nil {
			return nil, fmt.Errorf("failed to merge settings: %w", err)
		}
	}

	if s.useEnv {
		if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
			return nil, fmt.Errorf("failed to load environment variables: %w", err)
		}
	}

	cfg := &Settings{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	generated, err := s.ensureKeys(cfg)
	if err != nil {
		return nil, err
	}

	if verr := validation.ValidateStruct(cfg); verr != nil {
		return nil, fmt.Errorf("settings validation failed: %w", verr)
	}

	if generated {
		if err := s.Save(cfg); err != nil {
			return nil, fmt.Errorf("failed to save generated identity: %w", err)
		}
		logging.Info().Str("callsign", cfg.Callsign()).Msg("generated new station identity")
	}
	return cfg, nil
}

// ensureKeys fills in the key pair. It reports whether a new pair was
// generated.
func (s *Store) ensureKeys(cfg *Settings) (bool, error) {
	id := &cfg.Identity
	switch {
	case id.Nsec != "":
		kp, err := identity.KeyPairFromNsec(id.Nsec)
		if err != nil {
			return false, fmt.Errorf("invalid station nsec: %w", err)
		}
		if id.Npub != "" && id.Npub != kp.Npub {
			logging.Warn().Str("stored", id.Npub).Str("derived", kp.Npub).
				Msg("stored npub does not match nsec, using derived key")
		}
		id.Npub = kp.Npub
		return false, nil
	case id.Npub != "":
		logging.Warn().Msg("station has an npub but no nsec, running with public key only")
		return false, nil
	default:
		kp, err := s.newKeys()
		if err != nil {
			return false, fmt.Errorf("failed to generate station keys: %w", err)
		}
		id.Npub, id.Nsec = kp.Npub, kp.Nsec
		return true, nil
	}
}

// Save writes the full settings document, including the derived callsign.
func (s *Store) Save(cfg *Settings) error {
	doc, err := ToMap(cfg)
	if err != nil {
		return err
	}
	if err := s.persist.SaveSettings(doc); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// ToMap converts settings to a nested document. Durations are written as
// strings ("30s") and identity.callsign is added for human inspection.
func ToMap(cfg *Settings) (map[string]interface{}, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to flatten settings: %w", err)
	}
	for key, v := range k.All() {
		if d, ok := v.(time.Duration); ok {
			if err := k.Set(key, d.String()); err != nil {
				return nil, fmt.Errorf("failed to set %s: %w", key, err)
			}
		}
	}
	if err := k.Set("identity.callsign", cfg.Callsign()); err != nil {
		return nil, fmt.Errorf("failed to set callsign: %w", err)
	}
	return k.Raw(), nil
}

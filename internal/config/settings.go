// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package config

import (
	"path/filepath"
	"time"

	"github.com/tomtom215/station/internal/identity"
)

// Station modes.
const (
	ModeRoot = "root"
	ModeNode = "node"
)

// Settings is the process-wide station configuration. A *Settings handed out
// by the store or the server is treated as immutable; use CopyWith to derive
// a modified snapshot.
type Settings struct {
	Network  NetworkSettings  `koanf:"network"`
	Identity IdentitySettings `koanf:"identity"`
	Station  StationSettings  `koanf:"station"`
	Tiles    TileSettings     `koanf:"tiles"`
	Relay    RelaySettings    `koanf:"relay"`
	Blossom  BlossomSettings  `koanf:"blossom"`
	TLS      TLSSettings      `koanf:"tls"`
	SMTP     SMTPSettings     `koanf:"smtp"`
	Updates  UpdateSettings   `koanf:"updates"`
	Logging  LoggingSettings  `koanf:"logging"`
	DataDir  string           `koanf:"data_dir" validate:"required"`
}

// NetworkSettings controls the listener.
type NetworkSettings struct {
	Port           int           `koanf:"port" validate:"min=1,max=65535"`
	CORSEnabled    bool          `koanf:"cors_enabled"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gte=0"`
	MaxConnections int           `koanf:"max_connections" validate:"gte=0"`
}

// IdentitySettings holds the station key pair. The callsign is never stored
// here; it is always derived from Npub.
type IdentitySettings struct {
	Npub string `koanf:"npub" validate:"omitempty,npub"`
	Nsec string `koanf:"nsec" validate:"omitempty,nsec"`
}

// StationSettings describes this station to peers.
type StationSettings struct {
	Mode        string  `koanf:"mode" validate:"oneof=root node"`
	ParentURL   string  `koanf:"parent_url" validate:"omitempty,url"`
	Name        string  `koanf:"name" validate:"max=128"`
	Description string  `koanf:"description" validate:"max=1024"`
	Location    string  `koanf:"location" validate:"max=256"`
	Latitude    float64 `koanf:"latitude" validate:"latitude"`
	Longitude   float64 `koanf:"longitude" validate:"longitude"`
}

// TileSettings controls the tile server and its cache.
type TileSettings struct {
	Enabled        bool          `koanf:"enabled"`
	Dir            string        `koanf:"dir"`
	MaxZoom        int           `koanf:"max_zoom" validate:"tilezoom"`
	CacheBytes     int64         `koanf:"cache_bytes" validate:"gte=0"`
	OriginFallback bool          `koanf:"origin_fallback"`
	OriginURL      string        `koanf:"origin_url" validate:"required_if=OriginFallback true"`
	OriginTimeout  time.Duration `koanf:"origin_timeout" validate:"gte=0"`
	OriginRate     float64       `koanf:"origin_rate" validate:"gte=0"`
}

// RelaySettings is passed through to the relay collaborator.
type RelaySettings struct {
	RequireAuthForWrites bool `koanf:"require_auth_for_writes"`
}

// BlossomSettings bounds the blob store.
type BlossomSettings struct {
	Dir          string `koanf:"dir"`
	MaxStorageMB int64  `koanf:"max_storage_mb" validate:"gte=0"`
	MaxFileMB    int64  `koanf:"max_file_mb" validate:"gte=0"`
}

// TLSSettings enables HTTPS on the station listener.
type TLSSettings struct {
	Enabled  bool   `koanf:"enabled"`
	CertFile string `koanf:"cert_file" validate:"required_if=Enabled true"`
	KeyFile  string `koanf:"key_file" validate:"required_if=Enabled true"`
}

// SMTPSettings is reported in status only; the mail relay is external.
type SMTPSettings struct {
	Enabled bool   `koanf:"enabled"`
	Port    int    `koanf:"port" validate:"gte=0,lte=65535"`
	Domain  string `koanf:"domain"`
}

// UpdateSettings controls the release mirror.
type UpdateSettings struct {
	MirrorEnabled bool          `koanf:"mirror_enabled"`
	FeedURL       string        `koanf:"feed_url" validate:"required_if=MirrorEnabled true,omitempty,url"`
	Interval      time.Duration `koanf:"interval" validate:"gte=0"`
	Timeout       time.Duration `koanf:"timeout" validate:"gte=0"`
	Dir           string        `koanf:"dir"`
	MirrorAssets  bool          `koanf:"mirror_assets"`
	MaxAssetMB    int64         `koanf:"max_asset_mb" validate:"gte=0"`
}

// LoggingSettings configures internal/logging.
type LoggingSettings struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	File   string `koanf:"file"`
}

// Defaults returns Settings with every field at its default value. Keys are
// left empty; the store generates them on first load.
func Defaults() *Settings {
	return &Settings{
		Network: NetworkSettings{
			Port:           8080,
			CORSEnabled:    true,
			RequestTimeout: 30 * time.Second,
			MaxConnections: 1000,
		},
		Station: StationSettings{
			Mode: ModeRoot,
			Name: "Station",
		},
		Tiles: TileSettings{
			Enabled:        true,
			MaxZoom:        18,
			CacheBytes:     100 << 20,
			OriginFallback: true,
			OriginURL:      "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
			OriginTimeout:  10 * time.Second,
			OriginRate:     2,
		},
		Blossom: BlossomSettings{
			MaxStorageMB: 1024,
			MaxFileMB:    10,
		},
		SMTP: SMTPSettings{
			Port: 2525,
		},
		Updates: UpdateSettings{
			Interval:     time.Hour,
			Timeout:      30 * time.Second,
			MirrorAssets: true,
			MaxAssetMB:   200,
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "json",
		},
		DataDir: "data",
	}
}

// Callsign returns the short identifier derived from the station npub.
func (s *Settings) Callsign() string {
	return identity.Callsign(s.Identity.Npub)
}

// CopyWith returns a modified copy of s; s itself is left untouched.
//
//	next := cur.CopyWith(func(n *config.Settings) { n.Network.Port = 9090 })
//	srv.UpdateSettings(next)
func (s *Settings) CopyWith(fn func(*Settings)) *Settings {
	next := *s
	if fn != nil {
		fn(&next)
	}
	return &next
}

// TilesDir returns the tile directory, defaulting to <data_dir>/tiles.
func (s *Settings) TilesDir() string {
	return s.dirOr(s.Tiles.Dir, "tiles")
}

// BlossomDir returns the blob directory, defaulting to <data_dir>/blossom.
func (s *Settings) BlossomDir() string {
	return s.dirOr(s.Blossom.Dir, "blossom")
}

// UpdatesDir returns the update mirror directory, defaulting to
// <data_dir>/updates.
func (s *Settings) UpdatesDir() string {
	return s.dirOr(s.Updates.Dir, "updates")
}

// RegistryDir returns the identity registry database directory.
func (s *Settings) RegistryDir() string {
	return filepath.Join(s.DataDir, "registry")
}

func (s *Settings) dirOr(dir, sub string) string {
	if dir != "" {
		return dir
	}
	return filepath.Join(s.DataDir, sub)
}

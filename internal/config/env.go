// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package config

import "strings"

// EnvPrefix is the prefix for every environment override.
const EnvPrefix = "STATION_"

var envMappings = map[string]string{
	// Network
	"station_port":            "network.port",
	"station_cors_enabled":    "network.cors_enabled",
	"station_request_timeout": "network.request_timeout",
	"station_max_connections": "network.max_connections",

	// Identity
	"station_npub": "identity.npub",
	"station_nsec": "identity.nsec",

	// Station
	"station_mode":        "station.mode",
	"station_parent_url":  "station.parent_url",
	"station_name":        "station.name",
	"station_description": "station.description",
	"station_location":    "station.location",
	"station_latitude":    "station.latitude",
	"station_longitude":   "station.longitude",

	// Tiles
	"station_tiles_enabled":         "tiles.enabled",
	"station_tiles_dir":             "tiles.dir",
	"station_tiles_max_zoom":        "tiles.max_zoom",
	"station_tiles_cache_bytes":     "tiles.cache_bytes",
	"station_tiles_origin_fallback": "tiles.origin_fallback",
	"station_tiles_origin_url":      "tiles.origin_url",
	"station_tiles_origin_timeout":  "tiles.origin_timeout",
	"station_tiles_origin_rate":     "tiles.origin_rate",

	// Relay
	"station_relay_require_auth": "relay.require_auth_for_writes",

	// Blossom
	"station_blossom_dir":            "blossom.dir",
	"station_blossom_max_storage_mb": "blossom.max_storage_mb",
	"station_blossom_max_file_mb":    "blossom.max_file_mb",

	// TLS
	"station_tls_enabled":   "tls.enabled",
	"station_tls_cert_file": "tls.cert_file",
	"station_tls_key_file":  "tls.key_file",

	// SMTP
	"station_smtp_enabled": "smtp.enabled",
	"station_smtp_port":    "smtp.port",
	"station_smtp_domain":  "smtp.domain",

	// Updates
	"station_updates_enabled":       "updates.mirror_enabled",
	"station_updates_feed_url":      "updates.feed_url",
	"station_updates_interval":      "updates.interval",
	"station_updates_timeout":       "updates.timeout",
	"station_updates_dir":           "updates.dir",
	"station_updates_mirror_assets": "updates.mirror_assets",

	// Logging
	"station_log_level":  "logging.level",
	"station_log_format": "logging.format",
	"station_log_file":   "logging.file",

	// Paths
	"station_data_dir": "data_dir",
}

// envTransformFunc maps STATION_* environment variables to koanf paths.
// Unmapped variables return "" and are skipped.
//
// Examples:
//   - STATION_PORT -> network.port
//   - STATION_TILES_MAX_ZOOM -> tiles.max_zoom
//   - STATION_LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

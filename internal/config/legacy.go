// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package config

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/v2"
)

// legacyKey maps an old flat settings key onto its current nested path.
// convert, when set, rewrites the value (unit changes).
type legacyKey struct {
	from    string
	to      string
	convert func(k *koanf.Koanf, from string) interface{}
}

func megabytesToBytes(k *koanf.Koanf, from string) interface{} {
	return k.Int64(from) << 20
}

func secondsToDuration(k *koanf.Koanf, from string) interface{} {
	return (time.Duration(k.Int64(from)) * time.Second).String()
}

// legacyKeys lists accepted legacy names in priority order: when several
// legacy names map to the same path, the first one present wins.
var legacyKeys = []legacyKey{
	// Network
	{from: "httpPort", to: "network.port"},
	{from: "http_port", to: "network.port"},
	{from: "port", to: "network.port"},
	{from: "enableCors", to: "network.cors_enabled"},
	{from: "corsEnabled", to: "network.cors_enabled"},
	{from: "requestTimeoutSeconds", to: "network.request_timeout", convert: secondsToDuration},
	{from: "maxConnections", to: "network.max_connections"},

	// Identity
	{from: "publicKey", to: "identity.npub"},
	{from: "npub", to: "identity.npub"},
	{from: "privateKey", to: "identity.nsec"},
	{from: "nsec", to: "identity.nsec"},

	// Station
	{from: "role", to: "station.mode"},
	{from: "stationRole", to: "station.mode"},
	{from: "stationMode", to: "station.mode"},
	{from: "parentUrl", to: "station.parent_url"},
	{from: "stationName", to: "station.name"},
	{from: "name", to: "station.name"},
	{from: "stationDescription", to: "station.description"},
	{from: "description", to: "station.description"},
	{from: "location", to: "station.location"},
	{from: "latitude", to: "station.latitude"},
	{from: "longitude", to: "station.longitude"},

	// Tiles
	{from: "enableTileServer", to: "tiles.enabled"},
	{from: "tileServerEnabled", to: "tiles.enabled"},
	{from: "osmFallbackEnabled", to: "tiles.origin_fallback"},
	{from: "maxZoomLevel", to: "tiles.max_zoom"},
	{from: "maxCacheSizeMB", to: "tiles.cache_bytes", convert: megabytesToBytes},
	{from: "tilesDir", to: "tiles.dir"},

	// Relay
	{from: "nostrRequireAuthForWrites", to: "relay.require_auth_for_writes"},

	// Blossom
	{from: "blossomMaxStorageMb", to: "blossom.max_storage_mb"},
	{from: "blossomMaxFileMb", to: "blossom.max_file_mb"},

	// TLS
	{from: "enableSsl", to: "tls.enabled"},
	{from: "sslCertPath", to: "tls.cert_file"},
	{from: "sslKeyPath", to: "tls.key_file"},

	// SMTP
	{from: "smtpEnabled", to: "smtp.enabled"},
	{from: "smtpPort", to: "smtp.port"},
	{from: "smtpDomain", to: "smtp.domain"},

	// Updates
	{from: "updateMirrorEnabled", to: "updates.mirror_enabled"},
	{from: "updateCheckIntervalSeconds", to: "updates.interval", convert: secondsToDuration},
	{from: "updateUrl", to: "updates.feed_url"},
	{from: "updateFeedUrl", to: "updates.feed_url"},

	// Paths
	{from: "dataDir", to: "data_dir"},
}

// derivedKeys are written on save for human inspection and dropped on load.
var derivedKeys = []string{"identity.callsign", "callsign"}

// normalizeLegacy rewrites legacy keys in k to their current paths. A legacy
// value is only used when the current path is absent, so a document that
// carries both keeps the current value. All legacy keys are removed.
func normalizeLegacy(k *koanf.Koanf) error {
	for _, lk := range legacyKeys {
		if !k.Exists(lk.from) {
			continue
		}
		// Nested maps under a legacy name (e.g. a "port" section) are not
		// legacy scalars.
		if len(k.MapKeys(lk.from)) > 0 {
			continue
		}
		if !k.Exists(lk.to) {
			var v interface{}
			if lk.convert != nil {
				v = lk.convert(k, lk.from)
			} else {
				v = k.Get(lk.from)
			}
			if err := k.Set(lk.to, v); err != nil {
				return fmt.Errorf("migrate %s -> %s: %w", lk.from, lk.to, err)
			}
		}
	}
	for _, lk := range legacyKeys {
		if k.Exists(lk.from) && len(k.MapKeys(lk.from)) == 0 && lk.from != lk.to {
			k.Delete(lk.from)
		}
	}
	for _, dk := range derivedKeys {
		k.Delete(dk)
	}
	return nil
}

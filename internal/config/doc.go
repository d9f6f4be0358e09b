// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

/*
Package config provides station settings and the SettingsStore.

Settings load with Koanf v2 in three layers, lowest priority first:

 1. Defaults (structs provider over Defaults())
 2. The persisted settings document (confmap provider), after legacy
    flat keys such as httpPort, enableCors or maxCacheSizeMB have been
    rewritten to their nested paths
 3. STATION_* environment variables (env provider with an explicit
    mapping table, e.g. STATION_PORT -> network.port)

The station callsign is never loaded. Save writes it next to the key pair
so the file is readable by humans, and Load drops it and recomputes it from
identity.npub.

Example:

	store := config.NewStore(adapter, adapter.NewKeyPair)
	cfg, err := store.Load()
	if err != nil {
	    return err
	}
	next := cfg.CopyWith(func(s *config.Settings) { s.Network.Port = 9090 })
	srv.UpdateSettings(next)
*/
package config

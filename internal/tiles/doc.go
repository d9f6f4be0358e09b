// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

// Package tiles serves slippy-map tiles through a three-layer lookup:
// a byte-budgeted in-memory LRU, a {z}/{x}/{y}.png directory on disk, and an
// optional upstream origin.
//
// # Lookup
//
//	origin := tiles.NewOrigin(tiles.OriginConfig{URLTemplate: s.Tiles.OriginURL})
//	tc := tiles.New(tiles.Config{Dir: dir, MaxZoom: 18, MemoryBytes: 100 << 20}, origin)
//	data, src, err := tc.Get(ctx, tiles.Key{Z: 12, X: 2048, Y: 1361})
//
// # Integrity
//
// Every payload is checked by Validate before it is served or stored. Corrupt
// disk files are deleted; corrupt origin responses are dropped and the tile
// is fetched again on the next request.
//
// # Origin Protection
//
// Origin fetches are deduplicated per key (singleflight), capped by a
// weighted semaphore, paced by a token bucket, and guarded by a circuit
// breaker. An origin 404 does not count against the breaker.
package tiles

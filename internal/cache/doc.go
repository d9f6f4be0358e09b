// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

/*
Package cache provides a thread-safe LRU bounded by total value size.

ByteLRU keeps entries on a doubly linked list ordered by last access, so
eviction always removes the entry touched longest ago. Put evicts from the
tail until the new value fits; a value larger than the whole budget is
refused with ErrEntryTooLarge and the cache is left unchanged.

	lru := cache.NewByteLRU(100<<20, cache.WithEvictCallback(func(key string, size int) {
	    metrics.TileCacheEvictions.Inc()
	}))
	if err := lru.Put("12/2048/1361", png); err != nil {
	    // serve png without caching it
	}
	data, ok := lru.Get("12/2048/1361")

Values are copied in and out; callers never share backing arrays with the
cache.
*/
package cache

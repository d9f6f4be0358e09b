// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package tiles

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/station/internal/cache"
	"github.com/tomtom215/station/internal/fsutil"
	"github.com/tomtom215/station/internal/logging"
	"github.com/tomtom215/station/internal/metrics"
)

// Source names the layer that produced a tile.
type Source string

const (
	SourceMemory Source = "memory"
	SourceDisk   Source = "disk"
	SourceOrigin Source = "origin"
)

// Config configures a Cache.
type Config struct {
	// Dir holds tiles as {z}/{x}/{y}.png. Empty disables the disk layer.
	Dir string

	// MaxZoom rejects deeper requests before any lookup.
	MaxZoom int

	// MemoryBytes is the in-memory budget.
	MemoryBytes int64

	// FetchTimeout bounds a shared origin fetch. Zero uses
	// DefaultOriginTimeout.
	FetchTimeout time.Duration
}

// Cache serves tiles from memory, then disk, then the origin. Every payload
// is validated before it is served or stored.
type Cache struct {
	mem          *cache.ByteLRU
	dir          string
	maxZoom      int
	origin       Fetcher
	fetchTimeout time.Duration
	group        singleflight.Group
}

// New creates a tile cache. A nil origin disables the origin layer.
func New(cfg Config, origin Fetcher) *Cache {
	mem := cache.NewByteLRU(cfg.MemoryBytes, cache.WithEvictCallback(func(string, int) {
		metrics.TileCacheEvictions.Inc()
	}))
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultOriginTimeout
	}
	return &Cache{
		mem:          mem,
		dir:          cfg.Dir,
		maxZoom:      cfg.MaxZoom,
		origin:       origin,
		fetchTimeout: cfg.FetchTimeout,
	}
}

// Get returns the tile for key and the layer it came from.
//
// Zoom above the maximum fails with ErrZoomTooHigh without touching any
// layer. An invalid disk file is deleted and the origin is consulted; an
// invalid origin payload is never stored.
func (c *Cache) Get(ctx context.Context, key Key) ([]byte, Source, error) {
	if key.Z > c.maxZoom {
		metrics.TileRequests.WithLabelValues("rejected").Inc()
		return nil, "", fmt.Errorf("%w: %d > %d", ErrZoomTooHigh, key.Z, c.maxZoom)
	}
	if err := key.Validate(); err != nil {
		metrics.TileRequests.WithLabelValues("rejected").Inc()
		return nil, "", err
	}

	if data, ok := c.mem.Get(key.String()); ok {
		metrics.TileRequests.WithLabelValues(string(SourceMemory)).Inc()
		return data, SourceMemory, nil
	}

	if data, ok := c.readDisk(ctx, key); ok {
		c.remember(key, data)
		metrics.TileRequests.WithLabelValues(string(SourceDisk)).Inc()
		return data, SourceDisk, nil
	}

	if c.origin == nil {
		metrics.TileRequests.WithLabelValues("miss").Inc()
		return nil, "", fmt.Errorf("%w: %s", ErrTileNotFound, key)
	}

	// The shared fetch outlives any single caller; each caller stops waiting
	// when its own request ends.
	ch := c.group.DoChan(key.String(), func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		data, err := c.origin.Fetch(fetchCtx, key)
		if err != nil {
			return nil, err
		}
		c.remember(key, data)
		if err := c.writeDisk(key, data); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("tile", key.String()).Msg("tile disk write failed")
		}
		return data, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		metrics.TileRequests.WithLabelValues("miss").Inc()
		return nil, "", ctx.Err()
	}
	v, err := res.Val, res.Err
	if err != nil {
		if errors.Is(err, ErrInvalidTile) {
			metrics.TileInvalidPayloads.WithLabelValues(string(SourceOrigin)).Inc()
		}
		metrics.TileRequests.WithLabelValues("miss").Inc()
		logging.Ctx(ctx).Debug().Err(err).Str("tile", key.String()).Msg("tile origin fetch failed")
		return nil, "", err
	}

	metrics.TileRequests.WithLabelValues(string(SourceOrigin)).Inc()
	data := v.([]byte)
	return append([]byte(nil), data...), SourceOrigin, nil
}

// Stats returns in-memory cache counters.
func (c *Cache) Stats() cache.ByteStats {
	return c.mem.Stats()
}

// Contains reports whether key is held in memory, without refreshing it.
func (c *Cache) Contains(key Key) bool {
	_, ok := c.mem.LastAccess(key.String())
	return ok
}

// Clear drops the in-memory layer. Disk tiles are kept.
func (c *Cache) Clear() {
	c.mem.Clear()
	metrics.RecordTileCache(0, 0)
}

func (c *Cache) remember(key Key, data []byte) {
	if err := c.mem.Put(key.String(), data); err != nil {
		logging.Debug().Err(err).Str("tile", key.String()).Int("bytes", len(data)).
			Msg("tile not kept in memory")
	}
	metrics.RecordTileCache(c.mem.Len(), c.mem.Size())
}

func (c *Cache) path(key Key) string {
	return filepath.Join(c.dir, strconv.Itoa(key.Z), strconv.Itoa(key.X), strconv.Itoa(key.Y)+".png")
}

func (c *Cache) readDisk(ctx context.Context, key Key) ([]byte, bool) {
	if c.dir == "" {
		return nil, false
	}
	p := c.path(key)
	data, err := os.ReadFile(p)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Ctx(ctx).Warn().Err(err).Str("path", p).Msg("tile disk read failed")
		}
		return nil, false
	}
	if err := Validate(data); err != nil {
		metrics.TileInvalidPayloads.WithLabelValues(string(SourceDisk)).Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("path", p).Msg("removing corrupt tile from disk")
		if rmErr := os.Remove(p); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			logging.Ctx(ctx).Warn().Err(rmErr).Str("path", p).Msg("corrupt tile removal failed")
		}
		return nil, false
	}
	return data, true
}

func (c *Cache) writeDisk(key Key, data []byte) error {
	if c.dir == "" {
		return nil
	}
	return fsutil.WriteFileAtomic(c.path(key), data, 0o644)
}

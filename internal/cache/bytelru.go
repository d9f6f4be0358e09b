// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package cache

import (
	"errors"
	"sync"
	"time"
)

// ErrEntryTooLarge is returned by Put when a single value exceeds the whole
// byte budget.
var ErrEntryTooLarge = errors.New("entry larger than cache budget")

// byteEntry is a node in the recency list.
type byteEntry struct {
	key        string
	data       []byte
	lastAccess time.Time
	prev       *byteEntry
	next       *byteEntry
}

// ByteStats is a snapshot of ByteLRU counters.
type ByteStats struct {
	Entries   int
	Bytes     int64
	Budget    int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// ByteLRU is a thread-safe LRU cache bounded by the total size of its values
// rather than by entry count.
//
// The recency list is ordered by last access, so the tail is always the
// entry with the oldest lastAccess and eviction is O(1). Values are copied on
// Put and Get; callers never share backing arrays with the cache.
type ByteLRU struct {
	mu sync.Mutex

	budget int64
	used   int64
	items  map[string]*byteEntry

	// head.next is the most recently used, tail.prev the least.
	head *byteEntry
	tail *byteEntry

	now func() time.Time

	hits      int64
	misses    int64
	evictions int64

	onEvict func(key string, size int)
}

// ByteLRUOption configures a ByteLRU.
type ByteLRUOption func(*ByteLRU)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) ByteLRUOption {
	return func(c *ByteLRU) { c.now = now }
}

// WithEvictCallback registers fn to run (under the cache lock) for every
// evicted entry.
func WithEvictCallback(fn func(key string, size int)) ByteLRUOption {
	return func(c *ByteLRU) { c.onEvict = fn }
}

// NewByteLRU creates a cache holding at most budget bytes of values.
func NewByteLRU(budget int64, opts ...ByteLRUOption) *ByteLRU {
	c := &ByteLRU{
		budget: budget,
		items:  make(map[string]*byteEntry),
		head:   &byteEntry{},
		tail:   &byteEntry{},
		now:    time.Now,
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the value for key and refreshes its last access.
func (c *ByteLRU) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e.lastAccess = c.now()
	c.moveToFront(e)
	c.hits++
	return append([]byte(nil), e.data...), true
}

// Put stores a copy of data under key, evicting least-recently-accessed
// entries until it fits. A value larger than the budget is rejected with
// ErrEntryTooLarge and the cache is left unchanged.
func (c *ByteLRU) Put(key string, data []byte) error {
	size := int64(len(data))
	if size > c.budget {
		return ErrEntryTooLarge
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.items[key]; ok {
		c.unlink(old)
	}
	for c.used+size > c.budget {
		c.evictOldest()
	}

	e := &byteEntry{
		key:        key,
		data:       append([]byte(nil), data...),
		lastAccess: c.now(),
	}
	c.addToFront(e)
	c.items[key] = e
	c.used += size
	return nil
}

// Remove deletes key. It reports whether the key was present.
func (c *ByteLRU) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if ok {
		c.unlink(e)
	}
	return ok
}

// LastAccess returns the last access time of key without refreshing it.
func (c *ByteLRU) LastAccess(key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		return e.lastAccess, true
	}
	return time.Time{}, false
}

// Keys returns keys from most to least recently accessed.
func (c *ByteLRU) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for e := c.head.next; e != c.tail; e = e.next {
		keys = append(keys, e.key)
	}
	return keys
}

// Len returns the number of entries.
func (c *ByteLRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Size returns the total bytes held.
func (c *ByteLRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Clear removes every entry.
func (c *ByteLRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*byteEntry)
	c.head.next = c.tail
	c.tail.prev = c.head
	c.used = 0
}

// Stats returns a snapshot of the cache counters.
func (c *ByteLRU) Stats() ByteStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ByteStats{
		Entries:   len(c.items),
		Bytes:     c.used,
		Budget:    c.budget,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// peek returns the stored value without refreshing last access or counting
// a hit.
func (c *ByteLRU) peek(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[key]; ok {
		return e.data, true
	}
	return nil, false
}

// Internal methods (must be called with lock held)

func (c *ByteLRU) addToFront(e *byteEntry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *ByteLRU) moveToFront(e *byteEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.addToFront(e)
}

func (c *ByteLRU) unlink(e *byteEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(c.items, e.key)
	c.used -= int64(len(e.data))
}

func (c *ByteLRU) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.unlink(oldest)
	c.evictions++
	if c.onEvict != nil {
		c.onEvict(oldest.key, len(oldest.data))
	}
}

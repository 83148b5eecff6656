// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package shader

import "sync"

// DefaultCacheSize is the number of compiled stages kept by Compile.
const DefaultCacheSize = 32

type cacheKey struct {
	stage  Stage
	source string
}

// moduleCache is a thread-safe LRU of compiled modules with a soft limit.
// When the limit is exceeded the least recently used quarter is evicted.
type moduleCache struct {
	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
	limit   int
	tick    int64
	hits    uint64
	misses  uint64
}

type cacheEntry struct {
	module *Module
	atime  int64
}

var compiled = newModuleCache(DefaultCacheSize)

func newModuleCache(limit int) *moduleCache {
	return &moduleCache{entries: make(map[cacheKey]*cacheEntry), limit: limit}
}

func (c *moduleCache) get(key cacheKey) (*Module, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.tick++
	e.atime = c.tick
	return e.module, true
}

func (c *moduleCache) set(key cacheKey, m *Module) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tick++
	c.entries[key] = &cacheEntry{module: m, atime: c.tick}
	if c.limit > 0 && len(c.entries) > c.limit {
		c.evict()
	}
}

// evict drops the oldest entries until the cache is at 3/4 of its limit.
// Caller must hold c.mu.
func (c *moduleCache) evict() {
	target := max(c.limit*3/4, 1)
	for len(c.entries) > target {
		var (
			oldest cacheKey
			atime  int64 = -1
		)
		for k, e := range c.entries {
			if atime < 0 || e.atime < atime {
				oldest, atime = k, e.atime
			}
		}
		delete(c.entries, oldest)
	}
}

func (c *moduleCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]*cacheEntry)
	c.tick, c.hits, c.misses = 0, 0, 0
}

// CacheStats reports the compile cache state.
type CacheStats struct {
	Len    int
	Limit  int
	Hits   uint64
	Misses uint64
}

// Stats returns the compile cache statistics.
func Stats() CacheStats {
	c := compiled
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Len: len(c.entries), Limit: c.limit, Hits: c.hits, Misses: c.misses}
}

// ResetCache empties the compile cache and its counters.
func ResetCache() { compiled.reset() }

// Package cache provides a small in-process TTL map used for catalog
// detail lookups and resolved feed pages.
package cache

import (
	"sync"
	"time"
)

// sweepEvery controls how often Set walks the map to drop expired entries.
const sweepEvery = 100

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is a concurrency-safe map whose entries expire after a fixed duration.
type TTL[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration
	writes  int
	now     func() time.Time
}

// New creates a TTL cache. A non-positive ttl disables caching: Get always misses.
func New[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the value stored under key if it has not expired.
func (c *TTL[V]) Get(key string) (V, bool) {
	var zero V
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if now.Before(e.expiresAt) {
		return e.value, true
	}

	// Expired: drop lazily, unless a fresh value was stored in the meantime.
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, exists := c.entries[key]; exists {
		if c.now().Before(cur.expiresAt) {
			return cur.value, true
		}
		delete(c.entries, key)
	}
	return zero, false
}

// Set stores value under key for the cache TTL.
func (c *TTL[V]) Set(key string, value V) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.writes++
	if c.writes%sweepEvery == 0 {
		for k, e := range c.entries {
			if !now.Before(e.expiresAt) {
				delete(c.entries, k)
			}
		}
	}

	c.entries[key] = entry[V]{value: value, expiresAt: now.Add(c.ttl)}
}

// Delete removes key from the cache.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of stored entries, expired ones included.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

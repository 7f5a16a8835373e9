// Package cache provides the in-process TTL cache for catalog query
// results. Keys are the deterministic (query-id, canonical-params)
// strings produced by the catalog layer. Eviction is lazy: expired
// entries are dropped when read, and the oldest entry is dropped when
// the cache is full.
package cache

import (
	"sync"
	"time"

	"github.com/itsneelabh/insights-agent/internal/schema"
)

// Stats provides cache performance counters.
type Stats struct {
	Size      int     `json:"size"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

type item struct {
	fragment   *schema.Fragment
	insertedAt time.Time
}

// ResultCache is a TTL cache for query result fragments. Safe for
// concurrent use.
type ResultCache struct {
	mu         sync.RWMutex
	items      map[string]*item
	ttl        time.Duration
	maxEntries int
	stats      Stats

	// now is swappable in tests.
	now func() time.Time
}

// New creates a cache with the given TTL and entry cap.
func New(ttl time.Duration, maxEntries int) *ResultCache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &ResultCache{
		items:      make(map[string]*item),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the cached fragment for key, evicting it first if its
// age exceeds the TTL.
func (c *ResultCache) Get(key string) (*schema.Fragment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, found := c.items[key]
	if !found {
		c.stats.Misses++
		return nil, false
	}
	if c.now().Sub(it.insertedAt) > c.ttl {
		delete(c.items, key)
		c.stats.Evictions++
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return it.fragment, true
}

// Set stores a fragment under key. Last writer wins.
func (c *ResultCache) Set(key string, fragment *schema.Fragment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxEntries {
		c.evictExpiredLocked()
		if len(c.items) >= c.maxEntries {
			c.evictOldestLocked()
		}
	}
	c.items[key] = &item{fragment: fragment, insertedAt: c.now()}
}

// Invalidate drops every entry. This is the manual freshness hook
// exposed on the operations API.
func (c *ResultCache) Invalidate() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.items)
	c.items = make(map[string]*item)
	c.stats.Evictions += int64(n)
	return n
}

// Stats returns a snapshot of the cache counters.
func (c *ResultCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.stats
	s.Size = len(c.items)
	total := s.Hits + s.Misses
	if total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *ResultCache) evictExpiredLocked() {
	cutoff := c.now().Add(-c.ttl)
	for key, it := range c.items {
		if it.insertedAt.Before(cutoff) {
			delete(c.items, key)
			c.stats.Evictions++
		}
	}
}

func (c *ResultCache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for key, it := range c.items {
		if oldestKey == "" || it.insertedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = it.insertedAt
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
		c.stats.Evictions++
	}
}

package scraper

import (
	"sync"
	"time"
)

// robotsCacheSize caps the number of origins the gate remembers.
const robotsCacheSize = 1024

// robotsEntry holds the parsed rules for one origin. found is false when
// the origin served a 404, which RFC 9309 treats as "no restrictions" and
// permits caching like any other outcome.
type robotsEntry struct {
	rules     *robotsRules
	found     bool
	fetchedAt time.Time
}

// robotsCache is an in-memory, per-origin cache of robots.txt rules.
// It is safe for concurrent use. Only definitive fetch outcomes (parsed
// rules or a 404) are stored; transient failures are always retried.
type robotsCache struct {
	mu         sync.RWMutex
	store      map[string]*robotsEntry
	ttl        time.Duration
	maxEntries int
}

// newRobotsCache creates a cache whose entries expire after ttl.
// A background goroutine evicts expired entries every 5 minutes.
func newRobotsCache(ttl time.Duration, maxEntries int) *robotsCache {
	c := &robotsCache{
		store:      make(map[string]*robotsEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}

	go c.cleanupLoop()
	return c
}

// get returns the cached entry for origin if present and fresh.
func (c *robotsCache) get(origin string) (*robotsEntry, bool) {
	c.mu.RLock()
	e, ok := c.store[origin]
	c.mu.RUnlock()

	if !ok || time.Since(e.fetchedAt) > c.ttl {
		return nil, false
	}
	return e, true
}

// put stores rules for origin. If the cache is at capacity, a random
// entry is evicted to make room (map iteration is random in Go).
func (c *robotsCache) put(origin string, rules *robotsRules, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[origin] = &robotsEntry{
		rules:     rules,
		found:     found,
		fetchedAt: time.Now(),
	}
}

// cleanupLoop evicts expired entries every 5 minutes.
func (c *robotsCache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-c.ttl)
		c.mu.Lock()
		for k, e := range c.store {
			if e.fetchedAt.Before(cutoff) {
				delete(c.store, k)
			}
		}
		c.mu.Unlock()
	}
}

// Package cache provides a TTL response cache and an in-flight request
// deduplication tracker for backend reads.
package cache

import (
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultTTL is applied when Set is called with a non-positive ttl.
const DefaultTTL = time.Minute

type entry struct {
	data     any
	storedAt time.Time
	ttl      time.Duration
}

// Cache is a concurrency-safe TTL cache keyed by opaque strings chosen by
// callers. Expired entries are evicted lazily on the next Get of the same
// key.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry

	// now is swapped in tests to control time.
	now func() time.Time
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Set stores data under key for ttl. A non-positive ttl uses DefaultTTL.
func (c *Cache) Set(key string, data any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{data: data, storedAt: c.now(), ttl: ttl}
}

// Get returns the value stored under key, or (nil, false) if the key is
// absent or its entry has expired. Expired entries are removed.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) > e.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.data, true
}

// Invalidate removes all keys matching the doublestar glob pattern and
// returns how many entries were dropped. Called after mutations to
// stale-proof list reads.
func (c *Cache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		ok, err := doublestar.Match(pattern, key)
		if err != nil {
			// Invalid pattern matches nothing.
			return removed
		}
		if ok {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries, including any not yet lazily evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Value returns the entry under key asserted to T. Returns the zero value
// and false when the key is missing, expired, or holds a different type.
func Value[T any](c *Cache, key string) (T, bool) {
	var zero T
	raw, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

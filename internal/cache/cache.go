// Package cache memoizes source parses for a bounded time.
package cache

import (
	"fmt"
	"sync"
	"time"

	"presence/internal/metrics"
)

// DefaultTTL is how long a computed value is served before it is recomputed.
const DefaultTTL = 10 * time.Minute

type entry struct {
	value      any
	computedAt time.Time
}

// Cache holds one computed value per key. The mutex guards the map only;
// compute functions run unlocked, so concurrent misses on the same key may
// each compute and the last store wins. A compute that straddles Reset is
// returned to its caller but not stored.
type Cache struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]entry
	gen     uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an empty cache; ttl <= 0 falls back to DefaultTTL.
func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{ttl: ttl, now: time.Now, entries: make(map[string]entry)}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TTL returns the staleness threshold.
func (c *Cache) TTL() time.Duration { return c.ttl }

// GetOrCompute returns the stored value for key while it is younger than the
// TTL, otherwise calls compute and stores its result. A failed compute stores
// nothing and leaves any previous entry untouched.
func (c *Cache) GetOrCompute(key string, compute func() (any, error)) (any, error) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.entries[key]
	gen := c.gen
	c.mu.RUnlock()
	if ok && now.Sub(e.computedAt) < c.ttl {
		metrics.CacheRequests.WithLabelValues(key, "hit").Inc()
		return e.value, nil
	}
	if ok {
		metrics.CacheRequests.WithLabelValues(key, "stale").Inc()
	} else {
		metrics.CacheRequests.WithLabelValues(key, "miss").Inc()
	}

	v, err := compute()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.gen == gen {
		c.entries[key] = entry{value: v, computedAt: c.now()}
	}
	c.mu.Unlock()
	return v, nil
}

// Get is the typed form of GetOrCompute.
func Get[T any](c *Cache, key string, compute func() (T, error)) (T, error) {
	v, err := c.GetOrCompute(key, func() (any, error) { return compute() })
	if err != nil {
		var zero T
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache key %q holds %T", key, v)
	}
	return t, nil
}

// Reset drops every entry; the next read of any key recomputes.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.gen++
	c.mu.Unlock()
	metrics.CacheResets.Inc()
}

// Invalidate drops a single key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len reports the number of stored entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

package cache

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/forecal/forecal/internal/observability"
)

// Compute produces a fresh value for a cache key.
type Compute[V any] func(ctx context.Context) (V, error)

// Cache is a refresh-ahead TTL cache. Fresh entries are served directly.
// Stale entries are served immediately while a background recompute replaces
// them, so callers never block on a refresh once a value exists. Per key, at
// most one compute runs at a time; concurrent cold callers share one result.
type Cache[V any] struct {
	name  string
	clock clockwork.Clock

	// refreshTimeout bounds background recomputes, which run detached from
	// the request context so a disconnecting client cannot cancel them.
	refreshTimeout time.Duration

	metrics *observability.Metrics
	group   singleflight.Group

	mu      sync.RWMutex
	entries map[string]*entry[V]
}

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

// New creates a named cache. A nil clock means real time.
func New[V any](name string, clock clockwork.Clock, refreshTimeout time.Duration, metrics *observability.Metrics) *Cache[V] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if refreshTimeout <= 0 {
		refreshTimeout = 30 * time.Second
	}
	return &Cache[V]{
		name:           name,
		clock:          clock,
		refreshTimeout: refreshTimeout,
		metrics:        metrics,
		entries:        make(map[string]*entry[V]),
	}
}

// Get returns the value for key, computing it when absent.
//
// A fresh entry (age < ttl) is returned as-is. A stale entry is returned
// immediately and refreshed in the background; if that refresh fails the
// stale value simply stays, so upstream outages degrade to stale data instead
// of errors. Only a cold miss propagates a compute failure to the caller.
func (c *Cache[V]) Get(ctx context.Context, key string, ttl time.Duration, compute Compute[V]) (V, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		if c.clock.Now().Sub(e.fetchedAt) < ttl {
			c.metrics.CacheLookup(c.name, "fresh")
			return e.value, nil
		}
		c.metrics.CacheLookup(c.name, "stale")
		go c.refresh(key, compute)
		return e.value, nil
	}

	c.metrics.CacheLookup(c.name, "miss")
	v, err, _ := c.group.Do(key, func() (any, error) {
		// A concurrent caller may have populated the entry while this one
		// waited on the flight group.
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && c.clock.Now().Sub(e.fetchedAt) < ttl {
			return e.value, nil
		}

		val, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, val)
		return val, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Refresh recomputes the entry for key and replaces it on success, keeping
// the old value on failure. It shares the per-key flight group with Get.
func (c *Cache[V]) Refresh(ctx context.Context, key string, compute Compute[V]) {
	_, _, _ = c.group.Do(key, func() (any, error) {
		val, err := compute(ctx)
		if err != nil {
			c.metrics.RefreshError(c.name)
			log.Printf("cache %s: refresh failed for %q: %v", c.name, key, err)
			return nil, nil
		}
		c.store(key, val)
		return nil, nil
	})
}

// Keys returns all cached keys, sorted for deterministic iteration.
func (c *Cache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[V]) refresh(key string, compute Compute[V]) {
	ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
	defer cancel()
	c.Refresh(ctx, key, compute)
}

// store replaces the entry for key atomically: readers see either the old
// value or the fully-new one.
func (c *Cache[V]) store(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry[V]{value: value, fetchedAt: c.clock.Now()}
}

// Package cache implements the per-cycle Data Cache (C3): a keyed cache of
// collector outputs, single-flight safe so concurrent callers asking for
// the same missing key share one loader invocation instead of stampeding
// the upstream collector. The store remains the single source of truth;
// this cache is strictly best-effort and is wiped between cycles.
package cache

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Key identifies one cached value: a symbol (typically a market or token
// ID) and the collector source that produced it.
type Key struct {
	Symbol string
	Source string
}

// Cache is a (symbol, source)-keyed, single-flight-safe cache, cleared
// wholesale between cycles by the orchestrator calling Reset.
type Cache struct {
	group singleflight.Group

	mu     sync.RWMutex
	values map[Key]any
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{values: make(map[Key]any)}
}

// Get returns the cached value for key, calling loader exactly once across
// all concurrent callers if the key is missing. loader's result is cached
// only on success; a failed load is not cached, so the next caller retries.
func (c *Cache) Get(key Key, loader func() (any, error)) (any, error) {
	c.mu.RLock()
	if v, ok := c.values[key]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(key.Source+"|"+key.Symbol, func() (any, error) {
		c.mu.RLock()
		if v, ok := c.values[key]; ok {
			c.mu.RUnlock()
			return v, nil
		}
		c.mu.RUnlock()

		v, err := loader()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.values[key] = v
		c.mu.Unlock()
		return v, nil
	})
	return v, err
}

// Reset evicts every cached value. Called by the orchestrator (C9) between
// cycles so day-over-day drift is never served.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.values = make(map[Key]any)
	c.mu.Unlock()
}

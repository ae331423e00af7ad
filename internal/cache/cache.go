// Package cache implements the freshness cache for the snapshot path.
//
// It bounds upstream calls to at most one per instrument per TTL window and
// coalesces concurrent requests for the same instrument into a single
// in-flight fetch. Staleness is judged lazily at read time; there is no
// background sweeper.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomszi/quotefeed/internal/model"
)

// FetchFunc resolves a fresh tick for an instrument on cache miss.
type FetchFunc func(ctx context.Context) (model.MarketTick, error)

type entry struct {
	tick      model.MarketTick
	fetchedAt time.Time
}

// Cache is a per-instrument short-TTL store. Mutations are serialized per
// key via singleflight; cross-key operations proceed independently.
type Cache struct {
	ttl   time.Duration
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]entry

	now func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a Cache with the given TTL.
func New(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached tick for id if it is still fresh.
func (c *Cache) Get(id string) (model.MarketTick, bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.fetchedAt) > c.ttl {
		return model.MarketTick{}, false
	}
	return e.tick, true
}

// GetOrFetch returns the cached tick when fresh, otherwise invokes fetch
// with at most one in-flight fetch per id. Concurrent callers for a
// cold id all receive the single fetch's outcome. Only the fetching party
// writes the entry back.
func (c *Cache) GetOrFetch(ctx context.Context, id string, fetch FetchFunc) (model.MarketTick, error) {
	if tick, ok := c.Get(id); ok {
		return tick, nil
	}

	v, err, _ := c.group.Do(id, func() (any, error) {
		// A coalesced caller may arrive just after the winning fetch
		// completed; re-check before hitting the upstream again.
		if tick, ok := c.Get(id); ok {
			return tick, nil
		}

		tick, err := fetch(ctx)
		if err != nil {
			return model.MarketTick{}, err
		}

		return c.put(id, tick), nil
	})
	if err != nil {
		return model.MarketTick{}, err
	}
	return v.(model.MarketTick), nil
}

// put stores a tick, clamping its timestamp so entries never go backwards,
// and returns the stored value.
func (c *Cache) put(id string, tick model.MarketTick) model.MarketTick {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.entries[id]; ok && tick.TS < prev.tick.TS {
		tick.TS = prev.tick.TS
	}
	c.entries[id] = entry{tick: tick, fetchedAt: c.now()}
	return tick
}

// Len returns the number of stored entries, fresh or stale.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

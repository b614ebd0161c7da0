package currency

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultFreshness is how long a fetched rate table is served from memory
const DefaultFreshness = time.Hour

// RateCache holds one rate table per source currency. Every target fetched
// together for a source is stored and expires together.
// A single RateCache is meant to be shared by every caller in the process.
type RateCache struct {
	mu        sync.RWMutex
	freshness time.Duration
	entries   map[string]cacheEntry
	now       func() time.Time
}

type cacheEntry struct {
	rates     map[string]decimal.Decimal
	fetchedAt time.Time
}

// NewRateCache creates a cache with the given freshness window
func NewRateCache(freshness time.Duration) *RateCache {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &RateCache{
		freshness: freshness,
		entries:   make(map[string]cacheEntry),
		now:       time.Now,
	}
}

// WithClock replaces the time source, for tests
func (c *RateCache) WithClock(now func() time.Time) *RateCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// Freshness returns the freshness window
func (c *RateCache) Freshness() time.Duration {
	return c.freshness
}

// Get returns the rate table for source if it was fetched within the window
func (c *RateCache) Get(source string) (map[string]decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[source]
	if !ok || c.now().Sub(entry.fetchedAt) >= c.freshness {
		return nil, false
	}
	return entry.rates, true
}

// Put replaces the rate table for source
func (c *RateCache) Put(source string, rates map[string]decimal.Decimal) {
	copied := make(map[string]decimal.Decimal, len(rates))
	for k, v := range rates {
		copied[k] = v
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[source] = cacheEntry{rates: copied, fetchedAt: c.now()}
}

// Invalidate drops the table for source so the next lookup refetches
func (c *RateCache) Invalidate(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, source)
}

// Clear drops every cached table
func (c *RateCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// CleanExpired removes stale tables and returns how many were removed
func (c *RateCache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for source, entry := range c.entries {
		if now.Sub(entry.fetchedAt) >= c.freshness {
			delete(c.entries, source)
			removed++
		}
	}
	return removed
}

// Size returns the number of cached source currencies
func (c *RateCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

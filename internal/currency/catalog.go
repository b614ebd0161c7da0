package currency

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCatalogTTL is how long a fetched currency list is reused
const DefaultCatalogTTL = 24 * time.Hour

var errEmptyCatalog = errors.New("currency source returned no currencies")

// Currency is one currency in use somewhere in the world
type Currency struct {
	Code   string `json:"code"`
	Name   string `json:"name,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

// CurrencySource lists the currencies that may be submitted. Like the rate
// source it is remote and may fail.
type CurrencySource interface {
	FetchCurrencies(ctx context.Context) ([]Currency, error)
}

// Catalog caches the supported currency list. A failed fetch leaves the
// catalog unknown and is retried by the next caller.
type Catalog struct {
	source  CurrencySource
	ttl     time.Duration
	timeout time.Duration
	group   singleflight.Group
	now     func() time.Time
	logger  *zap.Logger
	fetches atomic.Int64

	mu        sync.RWMutex
	list      []Currency
	codes     map[string]bool
	fetchedAt time.Time
}

// NewCatalog creates a catalog over source. A non-positive ttl keeps the
// first successful list for the life of the process.
func NewCatalog(source CurrencySource, ttl, timeout time.Duration, logger *zap.Logger) *Catalog {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Catalog{
		source:  source,
		ttl:     ttl,
		timeout: timeout,
		now:     time.Now,
		logger:  logger,
	}
}

// WithClock replaces the catalog clock
func (c *Catalog) WithClock(now func() time.Time) *Catalog {
	c.now = now
	return c
}

// Fetches returns how many requests reached the currency source
func (c *Catalog) Fetches() int64 {
	return c.fetches.Load()
}

// List returns the supported currencies sorted by code. The bool is false
// when the list could not be loaded.
func (c *Catalog) List(ctx context.Context) ([]Currency, bool) {
	if !c.load(ctx) {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Currency, len(c.list))
	copy(out, c.list)
	return out, true
}

// Supported reports whether code is in the list. known is false when the
// list is unavailable, in which case supported carries no meaning.
func (c *Catalog) Supported(ctx context.Context, code string) (supported, known bool) {
	code = NormalizeCode(code)
	if !c.load(ctx) {
		return false, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.codes[code], true
}

// Invalidate forgets the list so the next call refetches
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list, c.codes, c.fetchedAt = nil, nil, time.Time{}
}

func (c *Catalog) fresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.codes == nil {
		return false
	}
	return c.ttl <= 0 || c.now().Sub(c.fetchedAt) < c.ttl
}

func (c *Catalog) load(ctx context.Context) bool {
	if c.fresh() {
		return true
	}
	if c.source == nil {
		return false
	}

	ch := c.group.DoChan("currencies", func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		c.fetches.Add(1)
		list, err := c.source.FetchCurrencies(fetchCtx)
		if err == nil && len(list) == 0 {
			err = errEmptyCatalog
		}
		if err != nil {
			c.logger.Warn("Currency list unavailable", zap.Error(err))
			return nil, err
		}
		c.store(list)
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err == nil && c.fresh()
	case <-ctx.Done():
		return false
	}
}

func (c *Catalog) store(list []Currency) {
	byCode := make(map[string]Currency, len(list))
	for _, cur := range list {
		code := NormalizeCode(cur.Code)
		if !ValidCode(code) {
			continue
		}
		if existing, ok := byCode[code]; ok && existing.Name != "" {
			continue
		}
		cur.Code = code
		byCode[code] = cur
	}

	sorted := make([]Currency, 0, len(byCode))
	codes := make(map[string]bool, len(byCode))
	for code, cur := range byCode {
		sorted = append(sorted, cur)
		codes[code] = true
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	c.mu.Lock()
	defer c.mu.Unlock()
	c.list, c.codes, c.fetchedAt = sorted, codes, c.now()
}

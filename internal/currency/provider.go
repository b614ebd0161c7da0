package currency

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultFetchTimeout bounds a single rate source request
const DefaultFetchTimeout = 5 * time.Second

// RateTable is a rate source response: target rates for one base currency
type RateTable struct {
	Base  string
	Date  string
	Rates map[string]decimal.Decimal
}

// RateSource fetches every known rate for a base currency. It is untrusted:
// it may fail, hang or return partial tables.
type RateSource interface {
	FetchRates(ctx context.Context, base string) (*RateTable, error)
}

// RateProvider resolves conversion rates through a shared cache.
// Concurrent misses for the same source share one fetch, and a failed or
// timed-out fetch is reported as unavailable rather than as an error.
type RateProvider struct {
	source  RateSource
	cache   *RateCache
	group   singleflight.Group
	timeout time.Duration
	logger  *zap.Logger
	fetches atomic.Int64
}

// NewRateProvider creates a provider backed by source and cache
func NewRateProvider(source RateSource, cache *RateCache, timeout time.Duration, logger *zap.Logger) *RateProvider {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if cache == nil {
		cache = NewRateCache(DefaultFreshness)
	}
	return &RateProvider{
		source:  source,
		cache:   cache,
		timeout: timeout,
		logger:  logger,
	}
}

// Cache returns the provider's cache
func (p *RateProvider) Cache() *RateCache {
	return p.cache
}

// Fetches returns how many requests reached the rate source
func (p *RateProvider) Fetches() int64 {
	return p.fetches.Load()
}

// GetRate returns the multiplier converting source into target.
// The second result is false when no usable rate is available.
func (p *RateProvider) GetRate(ctx context.Context, source, target string) (decimal.Decimal, bool) {
	source, target = NormalizeCode(source), NormalizeCode(target)
	if source == target {
		return decimal.NewFromInt(1), true
	}
	if !ValidCode(source) || !ValidCode(target) {
		p.logger.Warn("Invalid currency code", zap.String("source", source), zap.String("target", target))
		return decimal.Zero, false
	}

	rates, ok := p.table(ctx, source)
	if !ok {
		return decimal.Zero, false
	}

	rate, ok := rates[target]
	if !ok || !rate.IsPositive() {
		p.logger.Warn("Rate missing from table",
			zap.String("source", source),
			zap.String("target", target))
		return decimal.Zero, false
	}
	return rate, true
}

// table returns a fresh rate table for source, fetching it if needed
func (p *RateProvider) table(ctx context.Context, source string) (map[string]decimal.Decimal, bool) {
	if rates, ok := p.cache.Get(source); ok {
		return rates, true
	}

	// The fetch outlives an abandoning caller so its result still lands in
	// the cache for everyone else.
	ch := p.group.DoChan(source, func() (interface{}, error) {
		if rates, ok := p.cache.Get(source); ok {
			return rates, nil
		}
		return p.fetch(context.WithoutCancel(ctx), source)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false
		}
		return res.Val.(map[string]decimal.Decimal), true
	case <-ctx.Done():
		p.logger.Debug("Rate lookup abandoned", zap.String("source", source), zap.Error(ctx.Err()))
		return nil, false
	}
}

func (p *RateProvider) fetch(ctx context.Context, source string) (map[string]decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.fetches.Add(1)
	start := time.Now()

	table, err := p.source.FetchRates(ctx, source)
	if err != nil {
		p.logger.Warn("Rate fetch failed",
			zap.String("source", source),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}
	if table == nil || len(table.Rates) == 0 {
		p.logger.Warn("Rate source returned an empty table", zap.String("source", source))
		return nil, fmt.Errorf("empty rate table for %s", source)
	}

	rates := make(map[string]decimal.Decimal, len(table.Rates))
	for code, rate := range table.Rates {
		rates[NormalizeCode(code)] = rate
	}
	p.cache.Put(source, rates)

	p.logger.Info("Rates fetched",
		zap.String("source", source),
		zap.Int("targets", len(rates)),
		zap.Duration("elapsed", time.Since(start)))

	return rates, nil
}

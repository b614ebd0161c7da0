package currency

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// maxParallelLookups bounds concurrent distinct-currency lookups in a batch
const maxParallelLookups = 8

// RateLookup resolves a conversion rate; false means unavailable
type RateLookup interface {
	GetRate(ctx context.Context, source, target string) (decimal.Decimal, bool)
}

// Normalizer converts amounts into a single target currency
type Normalizer struct {
	rates RateLookup
}

// NewNormalizer creates a normalizer over the given rate lookup
func NewNormalizer(rates RateLookup) *Normalizer {
	return &Normalizer{rates: rates}
}

// Convert returns amount expressed in target. The amount is returned
// unchanged, without any lookup, when source and target are the same.
func (n *Normalizer) Convert(ctx context.Context, amount decimal.Decimal, source, target string) (decimal.Decimal, bool) {
	if NormalizeCode(source) == NormalizeCode(target) {
		return amount, true
	}
	rate, ok := n.rates.GetRate(ctx, source, target)
	if !ok {
		return decimal.Zero, false
	}
	return amount.Mul(rate), true
}

// Item is one amount to normalize in a batch
type Item struct {
	Amount   decimal.Decimal
	Currency string
}

// Result is the normalized amount of one batch item. OK is false when the
// item's currency could not be converted.
type Result struct {
	Amount decimal.Decimal
	OK     bool
}

// ConvertBatch normalizes items to target. Each distinct source currency is
// resolved once, so lookups are bounded by the number of currencies rather
// than the number of items. Results are index-aligned with items.
func (n *Normalizer) ConvertBatch(ctx context.Context, items []Item, target string) []Result {
	sources := make([]string, 0)
	seen := make(map[string]bool)
	for _, it := range items {
		code := NormalizeCode(it.Currency)
		if !seen[code] {
			seen[code] = true
			sources = append(sources, code)
		}
	}

	rates := n.ResolveRates(ctx, sources, target)

	results := make([]Result, len(items))
	for i, it := range items {
		rate, ok := rates[NormalizeCode(it.Currency)]
		if !ok {
			continue
		}
		if rate.Equal(decimal.NewFromInt(1)) {
			results[i] = Result{Amount: it.Amount, OK: true}
			continue
		}
		results[i] = Result{Amount: it.Amount.Mul(rate), OK: true}
	}
	return results
}

// ResolveRates looks up the rate from each source into target in parallel.
// Unavailable sources are absent from the returned map. If ctx is cancelled,
// lookups still in flight are abandoned and reported as unavailable.
func (n *Normalizer) ResolveRates(ctx context.Context, sources []string, target string) map[string]decimal.Decimal {
	var mu sync.Mutex
	resolved := make(map[string]decimal.Decimal, len(sources))
	target = NormalizeCode(target)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLookups)
	for _, source := range sources {
		source := NormalizeCode(source)
		if source == target {
			mu.Lock()
			resolved[source] = decimal.NewFromInt(1)
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			rate, ok := n.rates.GetRate(gctx, source, target)
			if ok {
				mu.Lock()
				resolved[source] = rate
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return resolved
}

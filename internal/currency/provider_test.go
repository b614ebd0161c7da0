package currency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	mu       sync.Mutex
	calls    map[string]int
	tables   map[string]map[string]decimal.Decimal
	err      error
	release  chan struct{}
	honorCtx bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		calls:  make(map[string]int),
		tables: map[string]map[string]decimal.Decimal{
			"EUR": {"USD": decimal.RequireFromString("1.10"), "GBP": decimal.RequireFromString("0.85")},
			"GBP": {"USD": decimal.RequireFromString("1.25")},
			"JPY": {"USD": decimal.RequireFromString("0.0067")},
		},
	}
}

func (f *fakeSource) FetchRates(ctx context.Context, base string) (*RateTable, error) {
	f.mu.Lock()
	f.calls[base]++
	release := f.release
	f.mu.Unlock()

	if release != nil {
		if f.honorCtx {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		} else {
			<-release
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	rates, ok := f.tables[base]
	if !ok {
		return nil, errors.New("unknown base")
	}
	return &RateTable{Base: base, Rates: rates}, nil
}

func (f *fakeSource) count(base string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[base]
}

func newProvider(src RateSource, cache *RateCache) *RateProvider {
	return NewRateProvider(src, cache, 50*time.Millisecond, zap.NewNop())
}

func TestRateProvider_Identity(t *testing.T) {
	src := newFakeSource()
	p := newProvider(src, NewRateCache(time.Hour))

	rate, ok := p.GetRate(context.Background(), "usd", "USD")

	require.True(t, ok)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, int64(0), p.Fetches())
}

func TestRateProvider_CachesWithinFreshness(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	cache := NewRateCache(time.Hour).WithClock(func() time.Time { return now })
	src := newFakeSource()
	p := newProvider(src, cache)
	ctx := context.Background()

	t.Run("second call within window is served from memory", func(t *testing.T) {
		r1, ok1 := p.GetRate(ctx, "EUR", "USD")
		r2, ok2 := p.GetRate(ctx, "EUR", "GBP")

		require.True(t, ok1)
		require.True(t, ok2)
		assert.Equal(t, "1.1", r1.String())
		assert.Equal(t, "0.85", r2.String())
		assert.Equal(t, 1, src.count("EUR"))
	})

	t.Run("stale table is refetched", func(t *testing.T) {
		now = now.Add(time.Hour)
		_, ok := p.GetRate(ctx, "EUR", "USD")

		require.True(t, ok)
		assert.Equal(t, 2, src.count("EUR"))
	})

	t.Run("invalidate forces refetch", func(t *testing.T) {
		cache.Invalidate("EUR")
		_, ok := p.GetRate(ctx, "EUR", "USD")

		require.True(t, ok)
		assert.Equal(t, 3, src.count("EUR"))
	})

	t.Run("clear drops everything", func(t *testing.T) {
		cache.Clear()
		assert.Equal(t, 0, cache.Size())

		_, ok := p.GetRate(ctx, "EUR", "USD")
		require.True(t, ok)
		assert.Equal(t, 4, src.count("EUR"))
	})
}

func TestRateProvider_MissingTarget(t *testing.T) {
	src := newFakeSource()
	p := newProvider(src, NewRateCache(time.Hour))

	_, ok := p.GetRate(context.Background(), "GBP", "EUR")
	assert.False(t, ok)

	// the table is still cached; a missing key does not trigger a refetch
	_, ok = p.GetRate(context.Background(), "GBP", "USD")
	assert.True(t, ok)
	assert.Equal(t, 1, src.count("GBP"))
}

func TestRateProvider_FetchFailure(t *testing.T) {
	src := newFakeSource()
	src.err = errors.New("connection refused")
	p := newProvider(src, NewRateCache(time.Hour))

	_, ok := p.GetRate(context.Background(), "EUR", "USD")

	assert.False(t, ok)
	assert.Equal(t, 0, p.Cache().Size())
}

func TestRateProvider_InvalidCodes(t *testing.T) {
	src := newFakeSource()
	p := newProvider(src, NewRateCache(time.Hour))

	_, ok := p.GetRate(context.Background(), "EURO", "USD")
	assert.False(t, ok)
	_, ok = p.GetRate(context.Background(), "EUR", "U$D")
	assert.False(t, ok)
	assert.Equal(t, int64(0), p.Fetches())
}

func TestRateProvider_Timeout(t *testing.T) {
	src := newFakeSource()
	src.release = make(chan struct{})
	src.honorCtx = true
	defer close(src.release)
	p := newProvider(src, NewRateCache(time.Hour))

	start := time.Now()
	_, ok := p.GetRate(context.Background(), "EUR", "USD")

	assert.False(t, ok)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRateProvider_CoalescesConcurrentMisses(t *testing.T) {
	src := newFakeSource()
	src.release = make(chan struct{})
	p := NewRateProvider(src, NewRateCache(time.Hour), time.Second, zap.NewNop())

	var wg sync.WaitGroup
	results := make([]bool, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = p.GetRate(context.Background(), "EUR", "USD")
		}(i)
	}

	// let the callers pile up on the in-flight request
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()

	for i, ok := range results {
		assert.True(t, ok, "caller %d", i)
	}
	assert.Equal(t, 1, src.count("EUR"))
}

func TestRateProvider_AbandonedLookupStillFillsCache(t *testing.T) {
	src := newFakeSource()
	src.release = make(chan struct{})
	p := NewRateProvider(src, NewRateCache(time.Hour), time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool)
	go func() {
		_, ok := p.GetRate(ctx, "EUR", "USD")
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	assert.False(t, <-done)

	close(src.release)
	assert.Eventually(t, func() bool { return p.Cache().Size() == 1 }, time.Second, 5*time.Millisecond)

	_, ok := p.GetRate(context.Background(), "EUR", "USD")
	assert.True(t, ok)
	assert.Equal(t, 1, src.count("EUR"))
}

func TestRateCache_CleanExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	cache := NewRateCache(time.Minute).WithClock(func() time.Time { return now })

	cache.Put("EUR", map[string]decimal.Decimal{"USD": decimal.NewFromInt(1)})
	now = now.Add(30 * time.Second)
	cache.Put("GBP", map[string]decimal.Decimal{"USD": decimal.NewFromInt(1)})
	now = now.Add(45 * time.Second)

	assert.Equal(t, 1, cache.CleanExpired())
	_, ok := cache.Get("GBP")
	assert.True(t, ok)
	_, ok = cache.Get("EUR")
	assert.False(t, ok)
}

func TestValidCode(t *testing.T) {
	assert.True(t, ValidCode("usd"))
	assert.True(t, ValidCode(" EUR "))
	assert.False(t, ValidCode(""))
	assert.False(t, ValidCode("US"))
	assert.False(t, ValidCode("12A"))
}

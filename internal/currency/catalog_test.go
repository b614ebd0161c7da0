package currency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCurrencySource struct {
	mu    sync.Mutex
	calls int
	list  []Currency
	err   error
}

func (f *fakeCurrencySource) FetchCurrencies(ctx context.Context) ([]Currency, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

func worldCurrencies() []Currency {
	return []Currency{
		{Code: "usd", Name: "United States dollar", Symbol: "$"},
		{Code: "EUR", Name: "Euro", Symbol: "€"},
		{Code: "USD"},
		{Code: "JPY", Name: "Japanese yen", Symbol: "¥"},
		{Code: "not-a-code"},
	}
}

func TestCatalog_ListSortsAndDeduplicates(t *testing.T) {
	source := &fakeCurrencySource{list: worldCurrencies()}
	catalog := NewCatalog(source, time.Hour, time.Second, zap.NewNop())

	list, ok := catalog.List(context.Background())

	require.True(t, ok)
	codes := make([]string, len(list))
	for i, c := range list {
		codes[i] = c.Code
	}
	assert.Equal(t, []string{"EUR", "JPY", "USD"}, codes)
	assert.Equal(t, "United States dollar", list[2].Name)
}

func TestCatalog_Supported(t *testing.T) {
	source := &fakeCurrencySource{list: worldCurrencies()}
	catalog := NewCatalog(source, 0, time.Second, zap.NewNop())
	ctx := context.Background()

	supported, known := catalog.Supported(ctx, "eur")
	assert.True(t, known)
	assert.True(t, supported)

	supported, known = catalog.Supported(ctx, "XTS")
	assert.True(t, known)
	assert.False(t, supported)

	assert.Equal(t, 1, source.calls, "list is fetched once")
}

func TestCatalog_UnavailableIsRetried(t *testing.T) {
	source := &fakeCurrencySource{err: errors.New("dns failure")}
	catalog := NewCatalog(source, time.Hour, time.Second, zap.NewNop())
	ctx := context.Background()

	_, known := catalog.Supported(ctx, "USD")
	assert.False(t, known)
	_, ok := catalog.List(ctx)
	assert.False(t, ok)

	source.mu.Lock()
	source.err = nil
	source.list = worldCurrencies()
	source.mu.Unlock()

	supported, known := catalog.Supported(ctx, "USD")
	assert.True(t, known)
	assert.True(t, supported)
	assert.Equal(t, 3, source.calls)
}

func TestCatalog_EmptyListIsUnavailable(t *testing.T) {
	catalog := NewCatalog(&fakeCurrencySource{}, time.Hour, time.Second, zap.NewNop())

	_, ok := catalog.List(context.Background())
	assert.False(t, ok)
}

func TestCatalog_RefetchesAfterTTL(t *testing.T) {
	source := &fakeCurrencySource{list: worldCurrencies()}
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	catalog := NewCatalog(source, time.Hour, time.Second, zap.NewNop()).
		WithClock(func() time.Time { return now })
	ctx := context.Background()

	catalog.List(ctx)
	now = now.Add(30 * time.Minute)
	catalog.List(ctx)
	assert.Equal(t, 1, source.calls)

	now = now.Add(time.Hour)
	catalog.List(ctx)
	assert.Equal(t, 2, source.calls)

	catalog.Invalidate()
	catalog.List(ctx)
	assert.Equal(t, 3, source.calls)
	assert.EqualValues(t, 3, catalog.Fetches())
}

func TestCatalog_NilSource(t *testing.T) {
	catalog := NewCatalog(nil, time.Hour, time.Second, zap.NewNop())

	_, known := catalog.Supported(context.Background(), "USD")
	assert.False(t, known)
}

package fetcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"equitysync/internal/cache"
	"equitysync/internal/market"
	"equitysync/internal/model"
)

type mockSource struct {
	fetchFunc func(ctx context.Context, symbol string, start, end time.Time) ([]model.PriceBar, error)
	calls     int
}

func (m *mockSource) FetchDailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]model.PriceBar, error) {
	m.calls++
	return m.fetchFunc(ctx, symbol, start, end)
}

type mockBarStore struct {
	upsertFunc func(ctx context.Context, bars []model.PriceBar) error
	calls      int
	stored     []model.PriceBar
}

func (m *mockBarStore) UpsertBatch(ctx context.Context, bars []model.PriceBar) error {
	m.calls++
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, bars)
	}
	m.stored = append(m.stored, bars...)
	return nil
}

func sampleBars(n int) []model.PriceBar {
	bars := make([]model.PriceBar, 0, n)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		bars = append(bars, model.PriceBar{
			Date:   model.Day(day.AddDate(0, 0, i)),
			Open:   10.0 + float64(i),
			High:   11.0 + float64(i),
			Low:    9.5 + float64(i),
			Close:  10.5 + float64(i),
			Volume: 1000,
		})
	}
	return bars
}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, MinBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func hkMarket(t *testing.T) market.Market {
	t.Helper()
	m, ok := market.Builtin()["hk-share"]
	require.True(t, ok)
	return m
}

func symbolRecord(symbol string) model.SymbolRecord {
	return model.SymbolRecord{Symbol: symbol, Market: "hk-share", Code: "0700", Name: "TENCENT"}
}

func TestFetchSuccessPersistsAndCaches(t *testing.T) {
	dir := t.TempDir()
	source := &mockSource{fetchFunc: func(ctx context.Context, symbol string, start, end time.Time) ([]model.PriceBar, error) {
		return sampleBars(3), nil
	}}
	store := &mockBarStore{}
	barCache, err := cache.NewBarCache(dir)
	require.NoError(t, err)

	f := NewFetcher(source, store, barCache, fastPolicy(3), time.Hour, 10, time.Second, zap.NewNop())
	result := f.Fetch(context.Background(), symbolRecord("0700.HK"), hkMarket(t), model.WindowHot)

	assert.Equal(t, model.TaskSuccess, result.Status)
	assert.Equal(t, 1, source.calls)
	require.Equal(t, 1, store.calls)
	require.Len(t, store.stored, 3)
	for _, bar := range store.stored {
		assert.Equal(t, "0700.HK", bar.Symbol)
	}

	cached, err := barCache.Read("0700.HK")
	require.NoError(t, err)
	assert.Len(t, cached, 3)
}

func TestFetchFreshArtifactSkipsSource(t *testing.T) {
	dir := t.TempDir()
	barCache, err := cache.NewBarCache(dir)
	require.NoError(t, err)
	bars := sampleBars(2)
	for i := range bars {
		bars[i].Symbol = "0700.HK"
	}
	require.NoError(t, barCache.Write("0700.HK", bars))

	source := &mockSource{fetchFunc: func(ctx context.Context, symbol string, start, end time.Time) ([]model.PriceBar, error) {
		return sampleBars(3), nil
	}}
	store := &mockBarStore{}

	f := NewFetcher(source, store, barCache, fastPolicy(3), time.Hour, 10, time.Second, zap.NewNop())
	result := f.Fetch(context.Background(), symbolRecord("0700.HK"), hkMarket(t), model.WindowHot)

	assert.Equal(t, model.TaskCache, result.Status)
	assert.Equal(t, 0, source.calls)
	assert.Equal(t, 0, store.calls)
}

func TestFetchStaleArtifactRefetches(t *testing.T) {
	dir := t.TempDir()
	barCache, err := cache.NewBarCache(dir)
	require.NoError(t, err)
	bars := sampleBars(2)
	for i := range bars {
		bars[i].Symbol = "0700.HK"
	}
	require.NoError(t, barCache.Write("0700.HK", bars))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "0700.HK.csv"), old, old))

	source := &mockSource{fetchFunc: func(ctx context.Context, symbol string, start, end time.Time) ([]model.PriceBar, error) {
		return sampleBars(3), nil
	}}
	store := &mockBarStore{}

	f := NewFetcher(source, store, barCache, fastPolicy(3), time.Hour, 10, time.Second, zap.NewNop())
	result := f.Fetch(context.Background(), symbolRecord("0700.HK"), hkMarket(t), model.WindowHot)

	assert.Equal(t, model.TaskSuccess, result.Status)
	assert.Equal(t, 1, source.calls)
}

func TestFetchEmptyIsTerminal(t *testing.T) {
	source := &mockSource{fetchFunc: func(ctx context.Context, symbol string, start, end time.Time) ([]model.PriceBar, error) {
		return nil, nil
	}}
	store := &mockBarStore{}

	f := NewFetcher(source, store, nil, fastPolicy(5), 0, 0, time.Second, zap.NewNop())
	result := f.Fetch(context.Background(), symbolRecord("9999.HK"), hkMarket(t), model.WindowHot)

	assert.Equal(t, model.TaskEmpty, result.Status)
	assert.Equal(t, 1, source.calls, "empty outcome must not be retried")
	assert.Equal(t, 0, store.calls)
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	source := &mockSource{}
	source.fetchFunc = func(ctx context.Context, symbol string, start, end time.Time) ([]model.PriceBar, error) {
		if source.calls < 3 {
			return nil, errors.New("status 429")
		}
		return sampleBars(2), nil
	}
	store := &mockBarStore{}

	f := NewFetcher(source, store, nil, fastPolicy(3), 0, 0, time.Second, zap.NewNop())
	result := f.Fetch(context.Background(), symbolRecord("0700.HK"), hkMarket(t), model.WindowHot)

	assert.Equal(t, model.TaskSuccess, result.Status)
	assert.Equal(t, 3, source.calls)
	assert.Equal(t, 1, store.calls)
}

func TestFetchRetryExhaustion(t *testing.T) {
	source := &mockSource{fetchFunc: func(ctx context.Context, symbol string, start, end time.Time) ([]model.PriceBar, error) {
		return nil, errors.New("status 503")
	}}
	store := &mockBarStore{}

	f := NewFetcher(source, store, nil, fastPolicy(3), 0, 0, time.Second, zap.NewNop())
	result := f.Fetch(context.Background(), symbolRecord("0700.HK"), hkMarket(t), model.WindowHot)

	assert.Equal(t, model.TaskError, result.Status)
	assert.False(t, result.StoreFailure)
	assert.Contains(t, result.Detail, "after 3 attempts")
	assert.Equal(t, 3, source.calls)
	assert.Equal(t, 0, store.calls, "nothing may be persisted on failure")
}

func TestFetchStoreFailureIsFlagged(t *testing.T) {
	source := &mockSource{fetchFunc: func(ctx context.Context, symbol string, start, end time.Time) ([]model.PriceBar, error) {
		return sampleBars(2), nil
	}}
	store := &mockBarStore{upsertFunc: func(ctx context.Context, bars []model.PriceBar) error {
		return errors.New("database is locked")
	}}

	f := NewFetcher(source, store, nil, fastPolicy(3), 0, 0, time.Second, zap.NewNop())
	result := f.Fetch(context.Background(), symbolRecord("0700.HK"), hkMarket(t), model.WindowHot)

	assert.Equal(t, model.TaskError, result.Status)
	assert.True(t, result.StoreFailure)
	assert.Contains(t, result.Detail, "store write failed")
}

func TestFetchWindowBounds(t *testing.T) {
	var gotStart, gotEnd time.Time
	source := &mockSource{fetchFunc: func(ctx context.Context, symbol string, start, end time.Time) ([]model.PriceBar, error) {
		gotStart, gotEnd = start, end
		return sampleBars(1), nil
	}}
	store := &mockBarStore{}

	f := NewFetcher(source, store, nil, fastPolicy(1), 0, 0, time.Second, zap.NewNop())
	f.now = func() time.Time { return time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC) }

	f.Fetch(context.Background(), symbolRecord("0700.HK"), hkMarket(t), model.WindowHot)
	assert.Equal(t, "2022-06-15", model.Day(gotStart))
	assert.Equal(t, "2024-06-15", model.Day(gotEnd))

	f.Fetch(context.Background(), symbolRecord("0700.HK"), hkMarket(t), model.WindowFull)
	assert.Equal(t, "1990-01-01", model.Day(gotStart))
}

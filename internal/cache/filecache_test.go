package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equitysync/internal/model"
)

func TestBarCacheRoundTrip(t *testing.T) {
	c, err := NewBarCache(t.TempDir())
	require.NoError(t, err)

	bars := []model.PriceBar{
		{Date: "2024-05-30", Symbol: "0700.HK", Open: 380.2, High: 385, Low: 378.6, Close: 384.4, Volume: 21400000},
		{Date: "2024-05-31", Symbol: "0700.HK", Open: 384.4, High: 390, Low: 383, Close: 389.8, Volume: 18900000},
	}
	require.NoError(t, c.Write("0700.HK", bars))

	got, err := c.Read("0700.HK")
	require.NoError(t, err)
	assert.Equal(t, bars, got)

	symbols, err := c.CachedSymbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"0700.HK"}, symbols)
}

func TestBarCacheWriteReplaces(t *testing.T) {
	c, err := NewBarCache(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, c.Write("7203.T", []model.PriceBar{
		{Date: "2024-05-30", Symbol: "7203.T", Close: 3400, Volume: 100},
		{Date: "2024-05-31", Symbol: "7203.T", Close: 3450, Volume: 110},
	}))
	require.NoError(t, c.Write("7203.T", []model.PriceBar{
		{Date: "2024-05-31", Symbol: "7203.T", Close: 3460, Volume: 115},
	}))

	got, err := c.Read("7203.T")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3460.0, got[0].Close)
}

func TestListCacheSameDayOnly(t *testing.T) {
	s := NewStaleness()
	c, err := NewListCache(t.TempDir(), s)
	require.NoError(t, err)

	_, hit := c.Load("hk-share")
	assert.False(t, hit, "empty cache is a miss")

	records := []model.SymbolRecord{
		{Symbol: "0700.HK", Market: "hk-share", Code: "0700", Name: "TENCENT"},
		{Symbol: "0005.HK", Market: "hk-share", Code: "0005", Name: "HSBC HOLDINGS"},
	}
	require.NoError(t, c.Store("hk-share", records))

	got, hit := c.Load("hk-share")
	require.True(t, hit)
	assert.Equal(t, records, got)

	_, hit = c.Load("jp-share")
	assert.False(t, hit, "cache is keyed per market")
}

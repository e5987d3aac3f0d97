package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"equitysync/internal/model"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, InitSchema(context.Background(), db))
	return db
}

func sampleBars() []model.PriceBar {
	return []model.PriceBar{
		{Date: "2024-05-30", Symbol: "600519.SS", Open: 1680, High: 1702, Low: 1675, Close: 1698, Volume: 2800000},
		{Date: "2024-05-31", Symbol: "600519.SS", Open: 1698, High: 1710, Low: 1690, Close: 1705, Volume: 3100000},
		{Date: "2024-05-31", Symbol: "000001.SZ", Open: 10.4, High: 10.6, Low: 10.3, Close: 10.5, Volume: 88000000},
	}
}

func TestBarUpsertIdempotence(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewBarRepository(db, zap.NewNop())

	require.NoError(t, repo.UpsertBatch(ctx, sampleBars()))

	count, err := repo.CountBySymbol(ctx, "600519.SS")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Re-applying the same batch must not change the row set.
	require.NoError(t, repo.UpsertBatch(ctx, sampleBars()))

	count, err = repo.CountBySymbol(ctx, "600519.SS")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	bars, err := repo.GetBars(ctx, "600519.SS", "", "", 0)
	require.NoError(t, err)
	assert.Equal(t, sampleBars()[:2], bars)
}

func TestBarUpsertReplacesOnSameKey(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewBarRepository(db, zap.NewNop())

	require.NoError(t, repo.UpsertBatch(ctx, []model.PriceBar{
		{Date: "2024-05-31", Symbol: "7203.T", Close: 3400, Volume: 100},
	}))
	require.NoError(t, repo.UpsertBatch(ctx, []model.PriceBar{
		{Date: "2024-05-31", Symbol: "7203.T", Close: 3425, Volume: 120},
	}))

	bars, err := repo.GetBars(ctx, "7203.T", "", "", 0)
	require.NoError(t, err)
	require.Len(t, bars, 1, "a corrected value replaces, never duplicates")
	assert.Equal(t, 3425.0, bars[0].Close)
	assert.Equal(t, int64(120), bars[0].Volume)
}

func TestGetBarsRange(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewBarRepository(db, zap.NewNop())
	require.NoError(t, repo.UpsertBatch(ctx, sampleBars()))

	bars, err := repo.GetBars(ctx, "600519.SS", "2024-05-31", "", 0)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "2024-05-31", bars[0].Date)

	bars, err = repo.GetBars(ctx, "600519.SS", "", "", 1)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "2024-05-30", bars[0].Date, "ordered by date before limit")
}

func TestSymbolReplaceAll(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewSymbolRepository(db, zap.NewNop())

	first := []model.SymbolRecord{
		{Symbol: "600519.SS", Market: "cn-share", Code: "600519", Name: "Kweichow Moutai"},
		{Symbol: "000001.SZ", Market: "cn-share", Code: "000001", Name: "Ping An Bank"},
	}
	require.NoError(t, repo.ReplaceAll(ctx, "cn-share", first))

	// A refresh is a full snapshot: dropped listings disappear.
	second := []model.SymbolRecord{
		{Symbol: "600519.SS", Market: "cn-share", Code: "600519", Name: "Kweichow Moutai"},
	}
	require.NoError(t, repo.ReplaceAll(ctx, "cn-share", second))

	got, err := repo.GetByMarket(ctx, "cn-share")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "600519.SS", got[0].Symbol)
}

func TestSymbolReplaceAllKeepsOtherMarkets(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewSymbolRepository(db, zap.NewNop())

	require.NoError(t, repo.ReplaceAll(ctx, "cn-share", []model.SymbolRecord{
		{Symbol: "600519.SS", Market: "cn-share", Code: "600519", Name: "Kweichow Moutai"},
	}))
	require.NoError(t, repo.ReplaceAll(ctx, "hk-share", []model.SymbolRecord{
		{Symbol: "0700.HK", Market: "hk-share", Code: "0700", Name: "TENCENT"},
	}))

	cn, err := repo.GetByMarket(ctx, "cn-share")
	require.NoError(t, err)
	assert.Len(t, cn, 1)

	hk, err := repo.GetByMarket(ctx, "hk-share")
	require.NoError(t, err)
	assert.Len(t, hk, 1)
}

func TestRepairDataFlags(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	symbols := NewSymbolRepository(db, zap.NewNop())
	bars := NewBarRepository(db, zap.NewNop())

	require.NoError(t, symbols.ReplaceAll(ctx, "jp-share", []model.SymbolRecord{
		{Symbol: "7203.T", Market: "jp-share", Code: "7203", Name: "Toyota"},
		{Symbol: "9999.T", Market: "jp-share", Code: "9999", Name: "Delisted Co"},
	}))
	require.NoError(t, bars.UpsertBatch(ctx, []model.PriceBar{
		{Date: "2024-05-31", Symbol: "7203.T", Close: 3400, Volume: 100},
	}))

	_, err := symbols.RepairDataFlags(ctx)
	require.NoError(t, err)

	got, err := symbols.GetByMarket(ctx, "jp-share")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, rec := range got {
		if rec.Symbol == "7203.T" {
			assert.True(t, rec.HasData)
		} else {
			assert.False(t, rec.HasData)
		}
	}
}

func TestManifestCheckpointAndLoad(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewManifestRepository(db, zap.NewNop())

	entries := []model.ManifestEntry{
		{Market: "jp-share", Symbol: "7203.T", Status: model.ManifestPending},
		{Market: "jp-share", Symbol: "6758.T", Status: model.ManifestDone},
	}
	require.NoError(t, repo.Checkpoint(ctx, entries))

	got, err := repo.Load(ctx, "jp-share")
	require.NoError(t, err)
	require.Len(t, got, 2)

	statuses := map[string]model.ManifestStatus{}
	for _, e := range got {
		statuses[e.Symbol] = e.Status
	}
	assert.Equal(t, model.ManifestPending, statuses["7203.T"])
	assert.Equal(t, model.ManifestDone, statuses["6758.T"])
}

func TestManifestMonotonicity(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewManifestRepository(db, zap.NewNop())

	require.NoError(t, repo.Checkpoint(ctx, []model.ManifestEntry{
		{Market: "jp-share", Symbol: "7203.T", Status: model.ManifestDone},
		{Market: "jp-share", Symbol: "6758.T", Status: model.ManifestFailed},
	}))

	// A rebuilt manifest writing pending must not revert terminal entries.
	require.NoError(t, repo.Checkpoint(ctx, []model.ManifestEntry{
		{Market: "jp-share", Symbol: "7203.T", Status: model.ManifestPending},
		{Market: "jp-share", Symbol: "6758.T", Status: model.ManifestPending},
	}))

	got, err := repo.Load(ctx, "jp-share")
	require.NoError(t, err)
	statuses := map[string]model.ManifestStatus{}
	for _, e := range got {
		statuses[e.Symbol] = e.Status
	}
	assert.Equal(t, model.ManifestDone, statuses["7203.T"])
	assert.Equal(t, model.ManifestFailed, statuses["6758.T"])

	// failed -> done is a legal forward transition on retry.
	require.NoError(t, repo.Checkpoint(ctx, []model.ManifestEntry{
		{Market: "jp-share", Symbol: "6758.T", Status: model.ManifestDone},
	}))
	got, err = repo.Load(ctx, "jp-share")
	require.NoError(t, err)
	for _, e := range got {
		if e.Symbol == "6758.T" {
			assert.Equal(t, model.ManifestDone, e.Status)
		}
	}
}

func TestAuditAppendOnly(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewAuditRepository(db, zap.NewNop())

	require.NoError(t, repo.Record(ctx, "hk-share", 2600, 2500, 100, 96.15))
	require.NoError(t, repo.Record(ctx, "hk-share", 2600, 2580, 20, 99.23))

	runs, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 2580, runs[0].Success, "newest first")
	assert.Equal(t, 2500, runs[1].Success)
	assert.Greater(t, runs[0].ID, runs[1].ID)
}

func TestOpenWarehouseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warehouse.db")

	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, InitSchema(context.Background(), db))
	require.NoError(t, db.Ping())

	// The schema is idempotent across reopens.
	require.NoError(t, InitSchema(context.Background(), db))
}

package fetcher

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"equitysync/internal/cache"
	"equitysync/internal/market"
	"equitysync/internal/model"
)

// HistorySource fetches daily bars for one exchange-qualified symbol in
// [start, end). A (nil, nil) return means the symbol has no data for the
// window.
type HistorySource interface {
	FetchDailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]model.PriceBar, error)
}

// BarStore persists fetched bars into the warehouse.
type BarStore interface {
	UpsertBatch(ctx context.Context, bars []model.PriceBar) error
}

// RetryPolicy bounds the per-symbol retry loop.
type RetryPolicy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

// Fetcher runs the per-symbol pipeline: staleness gate, bounded retry
// against the history source, warehouse upsert, artifact refresh.
type Fetcher struct {
	source    HistorySource
	bars      BarStore
	barCache  *cache.BarCache
	staleness *cache.Staleness
	policy    RetryPolicy
	cacheTTL  time.Duration
	cacheMin  int64
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewFetcher creates a fetcher. barCache may be nil to disable the local
// CSV artifacts and the staleness gate with them.
func NewFetcher(source HistorySource, bars BarStore, barCache *cache.BarCache, policy RetryPolicy, cacheTTL time.Duration, cacheMin int64, timeout time.Duration, logger *zap.Logger) *Fetcher {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		source:    source,
		bars:      bars,
		barCache:  barCache,
		staleness: cache.NewStaleness(),
		policy:    policy,
		cacheTTL:  cacheTTL,
		cacheMin:  cacheMin,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
	}
}

// Fetch processes one symbol and always returns a result; errors are folded
// into the result so the pool can aggregate them uniformly.
func (f *Fetcher) Fetch(ctx context.Context, sym model.SymbolRecord, mkt market.Market, window model.WindowMode) model.TaskResult {
	if f.barCache != nil && f.cacheTTL > 0 {
		if f.staleness.IsFresh(f.barCache.Path(sym.Symbol), f.cacheTTL, f.cacheMin) {
			return model.TaskResult{Symbol: sym.Symbol, Status: model.TaskCache}
		}
	}

	start := mkt.WindowStart(window == model.WindowFull, f.now())
	end := f.now()

	bars, err := f.fetchWithRetry(ctx, sym.Symbol, start, end)
	if err != nil {
		f.logger.Warn("History fetch exhausted retries",
			zap.String("symbol", sym.Symbol),
			zap.Error(err))
		return model.TaskResult{Symbol: sym.Symbol, Status: model.TaskError, Detail: err.Error()}
	}
	if len(bars) == 0 {
		return model.TaskResult{Symbol: sym.Symbol, Status: model.TaskEmpty}
	}

	for i := range bars {
		bars[i].Symbol = sym.Symbol
	}

	if err := f.bars.UpsertBatch(ctx, bars); err != nil {
		serr := &StoreError{Symbol: sym.Symbol, Cause: err}
		f.logger.Error("Failed to persist bars",
			zap.String("symbol", sym.Symbol),
			zap.Int("bars", len(bars)),
			zap.Error(err))
		return model.TaskResult{Symbol: sym.Symbol, Status: model.TaskError, Detail: serr.Error(), StoreFailure: true}
	}

	if f.barCache != nil {
		if err := f.barCache.Write(sym.Symbol, bars); err != nil {
			// The warehouse already has the rows; a stale artifact only
			// costs a redundant refetch next run.
			f.logger.Warn("Failed to refresh cache artifact",
				zap.String("symbol", sym.Symbol),
				zap.Error(err))
		}
	}

	return model.TaskResult{Symbol: sym.Symbol, Status: model.TaskSuccess, Detail: ""}
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, symbol string, start, end time.Time) ([]model.PriceBar, error) {
	var bars []model.PriceBar
	attempts := 0

	op := func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		got, err := f.source.FetchDailyHistory(attemptCtx, symbol, start, end)
		if err != nil {
			f.logger.Debug("History fetch attempt failed",
				zap.String("symbol", symbol),
				zap.Int("attempt", attempts),
				zap.Error(err))
			return err
		}
		bars = got
		return nil
	}

	b := backoff.NewExponentialBackOff()
	if f.policy.MinBackoff > 0 {
		b.InitialInterval = f.policy.MinBackoff
	}
	if f.policy.MaxBackoff > 0 {
		b.MaxInterval = f.policy.MaxBackoff
	}
	b.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithMaxRetries(backoff.WithContext(b, ctx), uint64(f.policy.MaxAttempts-1)))
	if err != nil {
		return nil, &FetchError{Symbol: symbol, Attempts: attempts, Cause: err}
	}
	return bars, nil
}

package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"equitysync/internal/market"
	"equitysync/internal/model"
	"equitysync/internal/scheduler"
)

// CatalogResolver resolves the symbol catalog for one market.
type CatalogResolver interface {
	Resolve(ctx context.Context, mkt market.Market) ([]model.SymbolRecord, error)
}

// SymbolFetcher runs the per-symbol fetch pipeline.
type SymbolFetcher interface {
	Fetch(ctx context.Context, sym model.SymbolRecord, mkt market.Market, window model.WindowMode) model.TaskResult
}

// ManifestStore persists per-symbol progress so interrupted runs resume.
type ManifestStore interface {
	Load(ctx context.Context, marketID string) ([]model.ManifestEntry, error)
	Checkpoint(ctx context.Context, entries []model.ManifestEntry) error
	Clear(ctx context.Context, marketID string) error
}

// AuditStore appends one summary row per finished run.
type AuditStore interface {
	Record(ctx context.Context, marketID string, total, success, fail int, successRate float64) error
}

// WarehouseMaintainer covers the post-run housekeeping on the bar store.
type WarehouseMaintainer interface {
	Compact(ctx context.Context) error
}

// CatalogMaintainer reconciles symbol metadata flags against stored bars.
type CatalogMaintainer interface {
	RepairDataFlags(ctx context.Context) (int64, error)
}

// SyncService orchestrates a full market sync: catalog resolution, manifest
// resume, pooled fetching, checkpointing, audit and housekeeping.
type SyncService struct {
	catalog   CatalogResolver
	fetcher   SymbolFetcher
	pool      *scheduler.Pool
	manifests ManifestStore
	audits    AuditStore
	warehouse WarehouseMaintainer
	symbols   CatalogMaintainer
	markets   map[string]market.Market

	checkpointEvery int
	logger          *zap.Logger

	runs *runRegistry
}

// NewSyncService creates a sync service over the given collaborators.
func NewSyncService(
	catalog CatalogResolver,
	fetcher SymbolFetcher,
	pool *scheduler.Pool,
	manifests ManifestStore,
	audits AuditStore,
	warehouse WarehouseMaintainer,
	symbols CatalogMaintainer,
	markets map[string]market.Market,
	checkpointEvery int,
	logger *zap.Logger,
) *SyncService {
	if checkpointEvery < 1 {
		checkpointEvery = 50
	}
	return &SyncService{
		catalog:         catalog,
		fetcher:         fetcher,
		pool:            pool,
		manifests:       manifests,
		audits:          audits,
		warehouse:       warehouse,
		symbols:         symbols,
		markets:         markets,
		checkpointEvery: checkpointEvery,
		logger:          logger,
		runs:            newRunRegistry(),
	}
}

// Markets returns the configured markets keyed by ID.
func (s *SyncService) Markets() map[string]market.Market {
	return s.markets
}

// StartRun launches a sync run in the background and returns its ID
// immediately. Progress is observable through GetRun.
func (s *SyncService) StartRun(req model.RunRequest) (int, error) {
	mkt, window, err := s.validate(req)
	if err != nil {
		return 0, err
	}

	id := s.runs.create(mkt.ID, window)
	go func() {
		// Detached from the HTTP request; the run owns its own lifetime.
		if _, err := s.execute(context.Background(), id, mkt, window); err != nil {
			s.logger.Error("Sync run failed",
				zap.Int("run_id", id),
				zap.String("market", mkt.ID),
				zap.Error(err))
		}
	}()
	return id, nil
}

// RunSync executes a run synchronously and returns its summary. Used by the
// batch entrypoint.
func (s *SyncService) RunSync(ctx context.Context, req model.RunRequest) (*model.RunSummary, error) {
	mkt, window, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	id := s.runs.create(mkt.ID, window)
	return s.execute(ctx, id, mkt, window)
}

// GetRun returns a snapshot of one run, or false if the ID is unknown.
func (s *SyncService) GetRun(id int) (model.RunStatus, bool) {
	return s.runs.get(id)
}

// ListRuns returns snapshots of all runs, newest first.
func (s *SyncService) ListRuns() []model.RunStatus {
	return s.runs.list()
}

func (s *SyncService) validate(req model.RunRequest) (market.Market, model.WindowMode, error) {
	mkt, ok := s.markets[req.Market]
	if !ok {
		return market.Market{}, "", fmt.Errorf("unknown market: %s", req.Market)
	}
	window := req.Window
	if window == "" {
		window = model.WindowHot
	}
	if !window.Valid() {
		return market.Market{}, "", fmt.Errorf("invalid window: %s", req.Window)
	}
	return mkt, window, nil
}

func (s *SyncService) execute(ctx context.Context, id int, mkt market.Market, window model.WindowMode) (*model.RunSummary, error) {
	started := time.Now()
	s.runs.setState(id, model.RunRunning)

	s.logger.Info("Starting sync run",
		zap.Int("run_id", id),
		zap.String("market", mkt.ID),
		zap.String("window", string(window)))

	symbols, err := s.catalog.Resolve(ctx, mkt)
	if err != nil {
		s.runs.fail(id, err)
		return nil, fmt.Errorf("failed to resolve catalog for %s: %w", mkt.ID, err)
	}

	pending, skipped, err := s.resume(ctx, mkt.ID, symbols)
	if err != nil {
		s.runs.fail(id, err)
		return nil, err
	}

	summary := &model.RunSummary{
		Market: mkt.ID,
		Window: window,
		Total:  len(symbols),
		Cache:  skipped,
	}
	s.runs.setTotal(id, len(symbols), skipped)

	storeFailures := s.drain(ctx, id, mkt, window, pending, summary)

	summary.Duration = time.Since(started)

	if err := s.audits.Record(ctx, mkt.ID,
		summary.Total,
		summary.Success+summary.Cache,
		summary.Empty+summary.Errors,
		summary.SuccessRate(),
	); err != nil {
		s.logger.Error("Failed to record audit row",
			zap.String("market", mkt.ID),
			zap.Error(err))
	}

	s.housekeeping(ctx, mkt.ID)

	if storeFailures > 0 {
		err := fmt.Errorf("%d symbols fetched but failed to persist", storeFailures)
		s.runs.fail(id, err)
		return summary, err
	}

	s.runs.complete(id)
	s.logger.Info("Sync run finished",
		zap.Int("run_id", id),
		zap.String("market", mkt.ID),
		zap.Int("total", summary.Total),
		zap.Int("success", summary.Success),
		zap.Int("cache", summary.Cache),
		zap.Int("empty", summary.Empty),
		zap.Int("errors", summary.Errors),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

// resume loads the manifest and splits the catalog into symbols still needing
// work and symbols already done in a previous interrupted run. Failed entries
// are retried.
func (s *SyncService) resume(ctx context.Context, marketID string, symbols []model.SymbolRecord) ([]model.SymbolRecord, int, error) {
	entries, err := s.manifests.Load(ctx, marketID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load manifest for %s: %w", marketID, err)
	}

	done := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Status == model.ManifestDone {
			done[e.Symbol] = true
		}
	}

	// A fully-done manifest means the previous pass completed; start over.
	if len(done) >= len(symbols) && len(symbols) > 0 {
		allDone := true
		for _, sym := range symbols {
			if !done[sym.Symbol] {
				allDone = false
				break
			}
		}
		if allDone {
			if err := s.manifests.Clear(ctx, marketID); err != nil {
				return nil, 0, fmt.Errorf("failed to clear manifest for %s: %w", marketID, err)
			}
			done = map[string]bool{}
		}
	}

	pending := make([]model.SymbolRecord, 0, len(symbols))
	seed := make([]model.ManifestEntry, 0, len(symbols))
	skipped := 0
	for _, sym := range symbols {
		if done[sym.Symbol] {
			skipped++
			continue
		}
		pending = append(pending, sym)
		seed = append(seed, model.ManifestEntry{
			Market: marketID,
			Symbol: sym.Symbol,
			Status: model.ManifestPending,
		})
	}

	if len(seed) > 0 {
		if err := s.manifests.Checkpoint(ctx, seed); err != nil {
			return nil, 0, fmt.Errorf("failed to seed manifest for %s: %w", marketID, err)
		}
	}

	if skipped > 0 {
		s.logger.Info("Resuming interrupted run",
			zap.String("market", marketID),
			zap.Int("already_done", skipped),
			zap.Int("pending", len(pending)))
	}
	return pending, skipped, nil
}

// drain runs the pool over the pending symbols and folds results into the
// summary, checkpointing the manifest in batches. Returns the number of
// store failures seen.
func (s *SyncService) drain(ctx context.Context, id int, mkt market.Market, window model.WindowMode, pending []model.SymbolRecord, summary *model.RunSummary) int {
	if len(pending) == 0 {
		return 0
	}

	results := s.pool.Run(ctx, pending, func(taskCtx context.Context, sym model.SymbolRecord) model.TaskResult {
		return s.fetcher.Fetch(taskCtx, sym, mkt, window)
	})

	storeFailures := 0
	batch := make([]model.ManifestEntry, 0, s.checkpointEvery)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.manifests.Checkpoint(ctx, batch); err != nil {
			s.logger.Error("Failed to checkpoint manifest",
				zap.String("market", mkt.ID),
				zap.Int("entries", len(batch)),
				zap.Error(err))
		}
		batch = batch[:0]
	}

	for result := range results {
		status := model.ManifestDone
		switch result.Status {
		case model.TaskSuccess:
			summary.Success++
		case model.TaskCache:
			summary.Cache++
		case model.TaskEmpty:
			summary.Empty++
		case model.TaskError:
			summary.Errors++
			summary.FailSymbols = append(summary.FailSymbols, result.Symbol)
			status = model.ManifestFailed
			if result.StoreFailure {
				storeFailures++
			}
		}

		batch = append(batch, model.ManifestEntry{
			Market: mkt.ID,
			Symbol: result.Symbol,
			Status: status,
		})
		if len(batch) >= s.checkpointEvery {
			flush()
		}

		s.runs.record(id, result)
	}
	flush()

	sort.Strings(summary.FailSymbols)
	return storeFailures
}

// housekeeping reclaims space and reconciles metadata flags after a run.
// Failures here are logged, not escalated; the synced data is already safe.
func (s *SyncService) housekeeping(ctx context.Context, marketID string) {
	if repaired, err := s.symbols.RepairDataFlags(ctx); err != nil {
		s.logger.Error("Failed to repair data flags",
			zap.String("market", marketID),
			zap.Error(err))
	} else if repaired > 0 {
		s.logger.Info("Repaired data availability flags",
			zap.Int64("rows", repaired))
	}

	if err := s.warehouse.Compact(ctx); err != nil {
		s.logger.Error("Failed to compact warehouse",
			zap.String("market", marketID),
			zap.Error(err))
	}
}

// runRegistry tracks run progress in memory for the status endpoints.
type runRegistry struct {
	mu     sync.RWMutex
	nextID int
	runs   map[int]*model.RunStatus
	order  []int
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[int]*model.RunStatus)}
}

func (r *runRegistry) create(marketID string, window model.WindowMode) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.runs[id] = &model.RunStatus{
		ID:        id,
		Market:    marketID,
		Window:    window,
		State:     model.RunPending,
		StartedAt: time.Now(),
	}
	r.order = append(r.order, id)
	return id
}

func (r *runRegistry) setState(id int, state model.RunState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[id]; ok {
		run.State = state
	}
}

func (r *runRegistry) setTotal(id, total, skipped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[id]; ok {
		run.Total = total
		run.Cache = skipped
	}
}

func (r *runRegistry) record(id int, result model.TaskResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return
	}
	switch result.Status {
	case model.TaskSuccess:
		run.Success++
	case model.TaskCache:
		run.Cache++
	case model.TaskEmpty:
		run.Empty++
	case model.TaskError:
		run.Errors++
		run.FailSymbols = append(run.FailSymbols, result.Symbol)
	}
}

func (r *runRegistry) complete(id int) {
	r.finish(id, model.RunCompleted, nil)
}

func (r *runRegistry) fail(id int, err error) {
	r.finish(id, model.RunFailed, err)
}

func (r *runRegistry) finish(id int, state model.RunState, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return
	}
	run.State = state
	if err != nil {
		run.Error = err.Error()
	}
	now := time.Now()
	run.FinishedAt = &now
}

func (r *runRegistry) get(id int) (model.RunStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return model.RunStatus{}, false
	}
	return cloneRun(run), true
}

func (r *runRegistry) list() []model.RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.RunStatus, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, cloneRun(r.runs[r.order[i]]))
	}
	return out
}

func cloneRun(run *model.RunStatus) model.RunStatus {
	snapshot := *run
	snapshot.FailSymbols = append([]string(nil), run.FailSymbols...)
	return snapshot
}

// Package catalog resolves the set of symbols to process for a market from
// a primary list source, an independent fallback, and a same-day cache.
package catalog

import (
	"context"
	"fmt"
	"time"

	"equitysync/internal/cache"
	"equitysync/internal/market"
	"equitysync/internal/model"

	"go.uber.org/zap"
)

// ListSource is a provider of raw security listings for a market.
type ListSource interface {
	Ident() string
	ListSymbols(ctx context.Context, marketID string) ([]model.RawListing, error)
}

// MetadataStore persists the resolved catalog as the authoritative symbol
// metadata snapshot.
type MetadataStore interface {
	ReplaceAll(ctx context.Context, marketID string, records []model.SymbolRecord) error
}

// Error means no valid symbol list could be resolved. It is fatal for the
// run: callers must abort rather than sync a partial catalog.
type Error struct {
	Market    string
	Resolved  int
	Threshold int
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("catalog resolution failed for %s: %d symbols resolved, need %d: %v",
			e.Market, e.Resolved, e.Threshold, e.Cause)
	}
	return fmt.Sprintf("catalog resolution failed for %s: %d symbols resolved, need %d",
		e.Market, e.Resolved, e.Threshold)
}

func (e *Error) Unwrap() error { return e.Cause }

// Service resolves symbol catalogs. Seed lists are a last-resort degraded
// mode that must be configured explicitly per market.
type Service struct {
	primary   ListSource
	fallback  ListSource
	listCache *cache.ListCache
	store     MetadataStore
	seeds     map[string][]string
	logger    *zap.Logger
}

// NewService creates a catalog service. fallback and listCache may be nil;
// seeds maps market ID to an explicitly configured last-resort symbol list.
func NewService(
	primary ListSource,
	fallback ListSource,
	listCache *cache.ListCache,
	store MetadataStore,
	seeds map[string][]string,
	logger *zap.Logger,
) *Service {
	return &Service{
		primary:   primary,
		fallback:  fallback,
		listCache: listCache,
		store:     store,
		seeds:     seeds,
		logger:    logger,
	}
}

// Resolve returns the symbols to process for a market. A same-day cached
// list above the market's threshold short-circuits all network calls. On a
// miss the primary source is queried, filtered and normalized; if the result
// is short the fallback source is merged in. A list still below threshold
// fails with *Error unless a seed list is configured for the market.
func (s *Service) Resolve(ctx context.Context, mkt market.Market) ([]model.SymbolRecord, error) {
	if s.listCache != nil {
		if cached, hit := s.listCache.Load(mkt.ID); hit && len(cached) >= mkt.MinListCount {
			s.logger.Info("Using same-day cached symbol list",
				zap.String("market", mkt.ID),
				zap.Int("count", len(cached)))
			return cached, nil
		}
	}

	records, primaryErr := s.fromSource(ctx, s.primary, mkt)
	if primaryErr != nil {
		s.logger.Warn("Primary list source failed",
			zap.Error(primaryErr),
			zap.String("market", mkt.ID),
			zap.String("source", s.primary.Ident()))
	} else {
		s.logger.Info("Primary list source resolved",
			zap.String("market", mkt.ID),
			zap.String("source", s.primary.Ident()),
			zap.Int("count", len(records)))
	}

	if len(records) < mkt.MinListCount && s.fallback != nil {
		s.logger.Info("Symbol list below threshold, querying fallback source",
			zap.String("market", mkt.ID),
			zap.String("source", s.fallback.Ident()),
			zap.Int("count", len(records)),
			zap.Int("threshold", mkt.MinListCount))

		fbRecords, err := s.fromSource(ctx, s.fallback, mkt)
		if err != nil {
			s.logger.Warn("Fallback list source failed",
				zap.Error(err),
				zap.String("market", mkt.ID),
				zap.String("source", s.fallback.Ident()))
		} else {
			records = merge(records, fbRecords)
			s.logger.Info("Merged fallback listings",
				zap.String("market", mkt.ID),
				zap.Int("count", len(records)))
		}
	}

	if len(records) < mkt.MinListCount {
		if seeds := s.seeds[mkt.ID]; len(seeds) > 0 {
			s.logger.Warn("Catalog resolution degraded: using configured seed list",
				zap.String("market", mkt.ID),
				zap.Int("resolved", len(records)),
				zap.Int("seeds", len(seeds)))
			return s.seedRecords(mkt, seeds), nil
		}
		return nil, &Error{
			Market:    mkt.ID,
			Resolved:  len(records),
			Threshold: mkt.MinListCount,
			Cause:     primaryErr,
		}
	}

	if s.listCache != nil {
		if err := s.listCache.Store(mkt.ID, records); err != nil {
			// A cache write failure only costs the next run a refetch.
			s.logger.Warn("Failed to cache symbol list",
				zap.Error(err),
				zap.String("market", mkt.ID))
		}
	}

	if s.store != nil {
		if err := s.store.ReplaceAll(ctx, mkt.ID, records); err != nil {
			return nil, fmt.Errorf("failed to persist symbol metadata: %w", err)
		}
	}

	return records, nil
}

// fromSource queries one list source and applies the market's equity filter
// and code normalization.
func (s *Service) fromSource(ctx context.Context, src ListSource, mkt market.Market) ([]model.SymbolRecord, error) {
	listings, err := src.ListSymbols(ctx, mkt.ID)
	if err != nil {
		return nil, err
	}

	records := make([]model.SymbolRecord, 0, len(listings))
	for _, l := range listings {
		if !mkt.IsCommonEquity(l.Name) {
			continue
		}
		code, ok := mkt.NormalizeCode(l.Code)
		if !ok {
			continue
		}
		records = append(records, model.SymbolRecord{
			Symbol:  mkt.ExchangeSymbol(code),
			Market:  mkt.ID,
			Code:    code,
			Name:    l.Name,
			Sector:  l.Sector,
			Segment: l.Board,
		})
	}
	return records, nil
}

func (s *Service) seedRecords(mkt market.Market, seeds []string) []model.SymbolRecord {
	records := make([]model.SymbolRecord, 0, len(seeds))
	now := time.Now()
	for _, sym := range seeds {
		records = append(records, model.SymbolRecord{
			Symbol:    sym,
			Market:    mkt.ID,
			Name:      sym,
			UpdatedAt: &now,
		})
	}
	return records
}

// merge combines two listing sets, de-duplicating by normalized symbol.
// First occurrence wins so the primary source's metadata is preferred.
func merge(a, b []model.SymbolRecord) []model.SymbolRecord {
	seen := make(map[string]struct{}, len(a)+len(b))
	merged := make([]model.SymbolRecord, 0, len(a)+len(b))
	for _, rec := range a {
		if _, dup := seen[rec.Symbol]; dup {
			continue
		}
		seen[rec.Symbol] = struct{}{}
		merged = append(merged, rec)
	}
	for _, rec := range b {
		if _, dup := seen[rec.Symbol]; dup {
			continue
		}
		seen[rec.Symbol] = struct{}{}
		merged = append(merged, rec)
	}
	return merged
}

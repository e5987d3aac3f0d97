package repository

import (
	"context"
	"fmt"
	"time"

	"equitysync/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// SymbolRepository handles warehouse operations for symbol metadata.
type SymbolRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewSymbolRepository creates a new symbol repository.
func NewSymbolRepository(db *sqlx.DB, logger *zap.Logger) *SymbolRepository {
	return &SymbolRepository{
		db:     db,
		logger: logger,
	}
}

// ReplaceAll swaps a market's symbol metadata for the given records in one
// transaction. Catalog refreshes are authoritative full snapshots, so the
// old rows are dropped rather than merged.
func (r *SymbolRepository) ReplaceAll(ctx context.Context, marketID string, records []model.SymbolRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin symbol refresh: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM stock_info WHERE market = ?`, marketID); err != nil {
		r.logger.Error("Failed to clear symbol metadata",
			zap.Error(err),
			zap.String("market", marketID))
		return fmt.Errorf("failed to clear symbol metadata: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO stock_info (symbol, market, code, name, sector, segment, has_data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET
			market = excluded.market,
			code = excluded.code,
			name = excluded.name,
			sector = excluded.sector,
			segment = excluded.segment,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		r.logger.Error("Failed to prepare symbol insert", zap.Error(err))
		return fmt.Errorf("failed to prepare symbol insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.Symbol, rec.Market, rec.Code, rec.Name, rec.Sector, rec.Segment, rec.HasData, now); err != nil {
			r.logger.Error("Failed to insert symbol",
				zap.Error(err),
				zap.String("symbol", rec.Symbol))
			return fmt.Errorf("failed to insert symbol %s: %w", rec.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit symbol refresh", zap.Error(err))
		return fmt.Errorf("failed to commit symbol refresh: %w", err)
	}

	return nil
}

// GetByMarket retrieves all symbol metadata for a market.
func (r *SymbolRepository) GetByMarket(ctx context.Context, marketID string) ([]model.SymbolRecord, error) {
	query := `
		SELECT symbol, market, code, name, sector, segment, has_data, updated_at
		FROM stock_info
		WHERE market = ?
		ORDER BY symbol
	`

	var records []model.SymbolRecord
	if err := r.db.SelectContext(ctx, &records, query, marketID); err != nil {
		r.logger.Error("Failed to get symbols by market",
			zap.Error(err),
			zap.String("market", marketID))
		return nil, err
	}
	return records, nil
}

// UpdateDataAvailability flips the has_data flag for a symbol.
func (r *SymbolRepository) UpdateDataAvailability(ctx context.Context, symbol string, available bool) error {
	query := `UPDATE stock_info SET has_data = ? WHERE symbol = ?`

	if _, err := r.db.ExecContext(ctx, query, available, symbol); err != nil {
		r.logger.Error("Failed to update symbol data availability",
			zap.Error(err),
			zap.String("symbol", symbol))
		return err
	}
	return nil
}

// RepairDataFlags recomputes every has_data flag from the actual bar table.
// Runs after a batch so flags drifted by partial failures converge to truth.
func (r *SymbolRepository) RepairDataFlags(ctx context.Context) (int64, error) {
	query := `
		UPDATE stock_info
		SET has_data = EXISTS (
			SELECT 1 FROM stock_prices p WHERE p.symbol = stock_info.symbol
		)
	`

	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to repair data availability flags", zap.Error(err))
		return 0, fmt.Errorf("failed to repair data availability flags: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

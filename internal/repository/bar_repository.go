package repository

import (
	"context"
	"fmt"

	"equitysync/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// BarRepository handles warehouse operations for daily price bars.
type BarRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewBarRepository creates a new bar repository.
func NewBarRepository(db *sqlx.DB, logger *zap.Logger) *BarRepository {
	return &BarRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertBatch writes a batch of bars with insert-or-replace semantics keyed
// by (date, symbol). Re-applying the same batch is a no-op in effect, so
// concurrent workers never need read-modify-write coordination.
func (r *BarRepository) UpsertBatch(ctx context.Context, bars []model.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin bar upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO stock_prices (date, symbol, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (date, symbol)
		DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume
	`)
	if err != nil {
		r.logger.Error("Failed to prepare bar upsert", zap.Error(err))
		return fmt.Errorf("failed to prepare bar upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Date, b.Symbol, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			r.logger.Error("Failed to upsert bar",
				zap.Error(err),
				zap.String("symbol", b.Symbol),
				zap.String("date", b.Date))
			return fmt.Errorf("failed to upsert bar %s/%s: %w", b.Symbol, b.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit bar upsert", zap.Error(err))
		return fmt.Errorf("failed to commit bar upsert: %w", err)
	}

	return nil
}

// GetBars retrieves bars for a symbol ordered by date, optionally bounded
// and limited.
func (r *BarRepository) GetBars(ctx context.Context, symbol string, startDate, endDate string, limit int) ([]model.PriceBar, error) {
	query := `
		SELECT date, symbol, open, high, low, close, volume
		FROM stock_prices
		WHERE symbol = ?
	`
	args := []interface{}{symbol}

	if startDate != "" {
		query += " AND date >= ?"
		args = append(args, startDate)
	}
	if endDate != "" {
		query += " AND date <= ?"
		args = append(args, endDate)
	}
	query += " ORDER BY date"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var bars []model.PriceBar
	if err := r.db.SelectContext(ctx, &bars, query, args...); err != nil {
		r.logger.Error("Failed to get bars",
			zap.Error(err),
			zap.String("symbol", symbol))
		return nil, err
	}
	return bars, nil
}

// CountBySymbol returns the number of stored bars for a symbol.
func (r *BarRepository) CountBySymbol(ctx context.Context, symbol string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM stock_prices WHERE symbol = ?`, symbol)
	if err != nil {
		r.logger.Error("Failed to count bars",
			zap.Error(err),
			zap.String("symbol", symbol))
		return 0, err
	}
	return count, nil
}

// InventoryItem summarizes a market's stored data coverage.
type InventoryItem struct {
	Market       string `json:"market" db:"market"`
	SymbolCount  int    `json:"symbol_count" db:"symbol_count"`
	BarCount     int64  `json:"bar_count" db:"bar_count"`
	EarliestDate string `json:"earliest_date" db:"earliest_date"`
	LatestDate   string `json:"latest_date" db:"latest_date"`
}

// Inventory reports per-market coverage of the warehouse.
func (r *BarRepository) Inventory(ctx context.Context) ([]InventoryItem, error) {
	query := `
		SELECT
			i.market AS market,
			COUNT(DISTINCT p.symbol) AS symbol_count,
			COUNT(p.symbol) AS bar_count,
			COALESCE(MIN(p.date), '') AS earliest_date,
			COALESCE(MAX(p.date), '') AS latest_date
		FROM stock_info i
		LEFT JOIN stock_prices p ON p.symbol = i.symbol
		GROUP BY i.market
		ORDER BY i.market
	`

	var items []InventoryItem
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		r.logger.Error("Failed to get inventory", zap.Error(err))
		return nil, err
	}
	return items, nil
}

// Compact reclaims space from replaced rows. Runs once per completed batch,
// never per write.
func (r *BarRepository) Compact(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "VACUUM"); err != nil {
		r.logger.Error("Failed to compact warehouse", zap.Error(err))
		return fmt.Errorf("failed to compact warehouse: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"equitysync/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ManifestRepository persists per-symbol progress for resumable batch runs.
type ManifestRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewManifestRepository creates a new manifest repository.
func NewManifestRepository(db *sqlx.DB, logger *zap.Logger) *ManifestRepository {
	return &ManifestRepository{
		db:     db,
		logger: logger,
	}
}

// Load returns a market's manifest entries, empty if no run has been
// checkpointed yet.
func (r *ManifestRepository) Load(ctx context.Context, marketID string) ([]model.ManifestEntry, error) {
	query := `
		SELECT market, symbol, status, updated_at
		FROM sync_manifest
		WHERE market = ?
		ORDER BY symbol
	`

	var entries []model.ManifestEntry
	if err := r.db.SelectContext(ctx, &entries, query, marketID); err != nil {
		r.logger.Error("Failed to load manifest",
			zap.Error(err),
			zap.String("market", marketID))
		return nil, err
	}
	return entries, nil
}

// Checkpoint durably writes the given entries. Terminal states are sticky:
// a row already marked done or failed is never reverted to pending, so a
// restart that rebuilds the manifest from scratch cannot lose progress.
func (r *ManifestRepository) Checkpoint(ctx context.Context, entries []model.ManifestEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin manifest checkpoint: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO sync_manifest (market, symbol, status, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (market, symbol) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at
		WHERE NOT (sync_manifest.status IN ('done', 'failed') AND excluded.status = 'pending')
	`)
	if err != nil {
		r.logger.Error("Failed to prepare manifest upsert", zap.Error(err))
		return fmt.Errorf("failed to prepare manifest upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Market, e.Symbol, e.Status, now); err != nil {
			r.logger.Error("Failed to checkpoint manifest entry",
				zap.Error(err),
				zap.String("symbol", e.Symbol))
			return fmt.Errorf("failed to checkpoint manifest entry %s: %w", e.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit manifest checkpoint", zap.Error(err))
		return fmt.Errorf("failed to commit manifest checkpoint: %w", err)
	}

	return nil
}

// Clear removes a market's manifest, used when a catalog refresh makes the
// previous batch's progress obsolete.
func (r *ManifestRepository) Clear(ctx context.Context, marketID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_manifest WHERE market = ?`, marketID); err != nil {
		r.logger.Error("Failed to clear manifest",
			zap.Error(err),
			zap.String("market", marketID))
		return fmt.Errorf("failed to clear manifest: %w", err)
	}
	return nil
}

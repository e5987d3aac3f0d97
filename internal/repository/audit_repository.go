package repository

import (
	"context"
	"fmt"
	"time"

	"equitysync/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// AuditRepository appends one immutable summary row per sync run.
type AuditRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sqlx.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Record appends a run summary. Prior rows are never touched.
func (r *AuditRepository) Record(ctx context.Context, marketID string, total, success, fail int, successRate float64) error {
	query := `
		INSERT INTO sync_audit (run_at, market, total, success, fail, success_rate)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	if _, err := r.db.ExecContext(ctx, query, time.Now(), marketID, total, success, fail, successRate); err != nil {
		r.logger.Error("Failed to record audit row",
			zap.Error(err),
			zap.String("market", marketID))
		return fmt.Errorf("failed to record audit row: %w", err)
	}
	return nil
}

// ListRecent returns the most recent audit rows, newest first.
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]model.AuditRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, run_at, market, total, success, fail, success_rate
		FROM sync_audit
		ORDER BY id DESC
		LIMIT ?
	`

	var runs []model.AuditRun
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		r.logger.Error("Failed to list audit rows", zap.Error(err))
		return nil, err
	}
	return runs, nil
}

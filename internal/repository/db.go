package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	// Registers the sqlite3 driver used by Open.
	_ "github.com/mattn/go-sqlite3"
)

// schema is the warehouse layout: bars keyed by (date, symbol), symbol
// metadata keyed by symbol, an append-only audit table and the resumable
// run manifest keyed by (market, symbol). Primary keys are the first line
// of defense against duplicate writes.
const schema = `
CREATE TABLE IF NOT EXISTS stock_prices (
	date    TEXT NOT NULL,
	symbol  TEXT NOT NULL,
	open    REAL,
	high    REAL,
	low     REAL,
	close   REAL,
	volume  INTEGER,
	PRIMARY KEY (date, symbol)
);

CREATE TABLE IF NOT EXISTS stock_info (
	symbol     TEXT PRIMARY KEY,
	market     TEXT NOT NULL,
	code       TEXT NOT NULL,
	name       TEXT NOT NULL,
	sector     TEXT NOT NULL DEFAULT '',
	segment    TEXT NOT NULL DEFAULT '',
	has_data   INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME
);

CREATE TABLE IF NOT EXISTS sync_manifest (
	market     TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	status     TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (market, symbol)
);

CREATE TABLE IF NOT EXISTS sync_audit (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_at       DATETIME NOT NULL,
	market       TEXT NOT NULL,
	total        INTEGER NOT NULL,
	success      INTEGER NOT NULL,
	fail         INTEGER NOT NULL,
	success_rate REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stock_prices_symbol ON stock_prices (symbol);
CREATE INDEX IF NOT EXISTS idx_stock_info_market ON stock_info (market);
`

// Open connects to the sqlite warehouse at path. The busy timeout lets
// concurrent upsert batches queue on the native lock instead of failing.
func Open(path string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_loc=UTC", path)
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse: %w", err)
	}
	return db, nil
}

// InitSchema creates the warehouse tables if they do not exist.
func InitSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize warehouse schema: %w", err)
	}
	return nil
}

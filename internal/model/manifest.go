package model

import "time"

// ManifestStatus is the durable per-symbol progress state for resumable runs.
type ManifestStatus string

const (
	ManifestPending ManifestStatus = "pending"
	ManifestDone    ManifestStatus = "done"
	ManifestFailed  ManifestStatus = "failed"
)

// ManifestEntry tracks one symbol's progress within a market's batch.
// Transitions are monotone: pending may become done or failed, and neither
// terminal state ever reverts to pending.
type ManifestEntry struct {
	Market    string         `json:"market" db:"market"`
	Symbol    string         `json:"symbol" db:"symbol"`
	Status    ManifestStatus `json:"status" db:"status"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

package model

import "time"

// AuditRun is one immutable summary row appended after every completed run.
type AuditRun struct {
	ID          int       `json:"id" db:"id"`
	RunAt       time.Time `json:"run_at" db:"run_at"`
	Market      string    `json:"market" db:"market"`
	Total       int       `json:"total" db:"total"`
	Success     int       `json:"success" db:"success"`
	Fail        int       `json:"fail" db:"fail"`
	SuccessRate float64   `json:"success_rate" db:"success_rate"`
}

package model

import "time"

// RunState is the lifecycle state of an in-flight or finished sync run.
type RunState string

const (
	RunPending   RunState = "pending"
	RunRunning   RunState = "in_progress"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
)

// RunRequest is the payload accepted to start a sync run for one market.
type RunRequest struct {
	Market string     `json:"market" binding:"required"`
	Window WindowMode `json:"window"`
}

// RunStatus is a snapshot of a sync run's progress, served over HTTP while
// the run is live and after it finishes.
type RunStatus struct {
	ID          int        `json:"id"`
	Market      string     `json:"market"`
	Window      WindowMode `json:"window"`
	State       RunState   `json:"state"`
	Total       int        `json:"total"`
	Success     int        `json:"success"`
	Cache       int        `json:"cache"`
	Empty       int        `json:"empty"`
	Errors      int        `json:"errors"`
	FailSymbols []string   `json:"fail_symbols,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// RunSummary is the final result of one sync run.
type RunSummary struct {
	Market      string     `json:"market"`
	Window      WindowMode `json:"window"`
	Total       int        `json:"total"`
	Success     int        `json:"success"`
	Cache       int        `json:"cache"`
	Empty       int        `json:"empty"`
	Errors      int        `json:"errors"`
	FailSymbols []string   `json:"fail_symbols,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Processed returns the number of symbols with a terminal outcome.
func (s *RunSummary) Processed() int {
	return s.Success + s.Cache + s.Empty + s.Errors
}

// SuccessRate returns the percentage of symbols that ended with usable data.
// Cache hits count as success; empty and error count as failures, matching
// the audit convention.
func (s *RunSummary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Success+s.Cache) / float64(s.Total) * 100
}

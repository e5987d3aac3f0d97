package model

// TaskStatus classifies the terminal outcome of one fetch task.
type TaskStatus string

const (
	// TaskSuccess means fresh bars were fetched and persisted.
	TaskSuccess TaskStatus = "success"
	// TaskCache means a fresh local artifact made the fetch unnecessary.
	TaskCache TaskStatus = "cache"
	// TaskEmpty means the source legitimately has no data for the symbol.
	TaskEmpty TaskStatus = "empty"
	// TaskError means the fetch failed after exhausting retries, or the
	// persisted write failed.
	TaskError TaskStatus = "error"
)

// TaskResult is the outcome of one dispatched fetch task. The scheduler
// produces exactly one per input symbol.
type TaskResult struct {
	Symbol string     `json:"symbol"`
	Status TaskStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
	// StoreFailure marks results whose bars were fetched but could not be
	// written to the warehouse. These are escalated at run level since they
	// imply data loss.
	StoreFailure bool `json:"store_failure,omitempty"`
}

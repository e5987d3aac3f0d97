package fetcher

import (
	"fmt"
)

// FetchError means all configured attempts for a symbol failed with
// transient errors. It carries the attempt count and the last cause.
type FetchError struct {
	Symbol   string
	Attempts int
	Cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for %s after %d attempts: %v", e.Symbol, e.Attempts, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// StoreError means bars were fetched but the warehouse write failed. It is
// escalated rather than folded into ordinary fetch failures because it
// implies data loss for the symbol.
type StoreError struct {
	Symbol string
	Cause  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store write failed for %s: %v", e.Symbol, e.Cause)
}

func (e *StoreError) Unwrap() error { return e.Cause }

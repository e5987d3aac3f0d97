package model

import "time"

// SymbolRecord represents one tradable instrument in a market's catalog.
// The exchange-qualified Symbol is the unique key; records are recreated
// wholesale on each catalog refresh.
type SymbolRecord struct {
	Symbol    string     `json:"symbol" db:"symbol"`
	Market    string     `json:"market" db:"market"`
	Code      string     `json:"code" db:"code"`
	Name      string     `json:"name" db:"name"`
	Sector    string     `json:"sector,omitempty" db:"sector"`
	Segment   string     `json:"segment,omitempty" db:"segment"`
	HasData   bool       `json:"has_data" db:"has_data"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// RawListing is one row as returned by a list source, before market-specific
// normalization.
type RawListing struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Sector string `json:"sector,omitempty"`
	Board  string `json:"board,omitempty"`
}

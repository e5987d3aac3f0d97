package model

import "time"

// DateLayout is the canonical calendar-day format used for bar keys and
// file artifacts.
const DateLayout = "2006-01-02"

// PriceBar represents one day's OHLCV record for a symbol. The warehouse
// keys bars by (date, symbol); re-writing the same key replaces the row.
type PriceBar struct {
	Date   string  `json:"date" db:"date" csv:"date"`
	Symbol string  `json:"symbol" db:"symbol" csv:"symbol"`
	Open   float64 `json:"open" db:"open" csv:"open"`
	High   float64 `json:"high" db:"high" csv:"high"`
	Low    float64 `json:"low" db:"low" csv:"low"`
	Close  float64 `json:"close" db:"close" csv:"close"`
	Volume int64   `json:"volume" db:"volume" csv:"volume"`
}

// Day normalizes a timestamp to its calendar day, dropping the timezone.
// Upstream sources report bars in exchange-local time; the warehouse only
// keeps the day.
func Day(t time.Time) string {
	return t.Format(DateLayout)
}

// WindowMode selects how much history a fetch requests.
type WindowMode string

const (
	// WindowHot requests a bounded recent window.
	WindowHot WindowMode = "hot"
	// WindowFull requests maximum available history.
	WindowFull WindowMode = "full"
)

// Valid reports whether the mode is one of the known window policies.
func (m WindowMode) Valid() bool {
	return m == WindowHot || m == WindowFull
}

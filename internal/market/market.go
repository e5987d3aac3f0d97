// Package market holds per-market listing conventions: code normalization,
// exchange suffixing, exclusion vocabularies and catalog size thresholds.
package market

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Market describes one equity market's conventions. Normalization is
// data-driven so new markets plug in through configuration rather than code.
type Market struct {
	// ID is the market code used in storage and audit rows, e.g. "cn-share".
	ID string
	// CodeWidth is the zero-padded width of a normalized numeric code.
	CodeWidth int
	// DefaultSuffix is appended to every exchange symbol unless a prefix
	// rule overrides it, e.g. ".HK".
	DefaultSuffix string
	// PrefixSuffixes maps a leading-digit prefix to an exchange suffix,
	// e.g. "6" -> ".SS" for Shanghai listings.
	PrefixSuffixes map[string]string
	// ValidPrefixes restricts accepted codes to these prefixes. Empty means
	// any numeric code of the right width is accepted.
	ValidPrefixes []string
	// MinListCount is the smallest catalog size considered complete. Below
	// it the fallback source is consulted, and resolution fails if the
	// merged list is still short.
	MinListCount int
	// ExcludeKeywords filters non-common-equity instruments by
	// case-insensitive substring match against the listing name.
	ExcludeKeywords []string
	// HotStart bounds the "hot" window: either a fixed start date or a
	// rolling span of HotYears before now.
	HotStart string
	HotYears int
	// FullStart is the start date used for maximum-history fetches.
	FullStart string
}

// NormalizeCode reduces a raw listing code to its digits, zero-pads it to
// the market's width and validates its prefix. Returns false for codes that
// do not belong in this market's catalog.
func (m Market) NormalizeCode(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" || len(digits) > m.CodeWidth {
		return "", false
	}
	code := strings.Repeat("0", m.CodeWidth-len(digits)) + digits
	if len(m.ValidPrefixes) == 0 {
		return code, true
	}
	for _, p := range m.ValidPrefixes {
		if strings.HasPrefix(code, p) {
			return code, true
		}
	}
	return "", false
}

// ExchangeSymbol converts a normalized code into its exchange-qualified
// symbol. The leading digits pick the suffix where a market spans several
// exchanges.
func (m Market) ExchangeSymbol(code string) string {
	for prefix, suffix := range m.PrefixSuffixes {
		if strings.HasPrefix(code, prefix) {
			return code + suffix
		}
	}
	return code + m.DefaultSuffix
}

// IsCommonEquity reports whether a listing name passes the exclusion
// vocabulary, filtering warrants, ETFs, REITs and similar instruments.
func (m Market) IsCommonEquity(name string) bool {
	upper := strings.ToUpper(name)
	for _, kw := range m.ExcludeKeywords {
		if strings.Contains(upper, strings.ToUpper(kw)) {
			return false
		}
	}
	return true
}

// WindowStart resolves a window mode into the history start time.
func (m Market) WindowStart(full bool, now time.Time) time.Time {
	if full {
		return mustDate(m.FullStart)
	}
	if m.HotStart != "" {
		return mustDate(m.HotStart)
	}
	return now.AddDate(-m.HotYears, 0, 0)
}

// mustDate panics on a malformed date so a bad HotStart or FullStart is
// caught when the market is first used, not as a silent 0001-01-01 window.
func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(fmt.Sprintf("market: invalid window date %q: %v", s, err))
	}
	return t
}

// Builtin returns the markets this service ships with, keyed by market ID.
func Builtin() map[string]Market {
	return map[string]Market{
		"cn-share": {
			ID:            "cn-share",
			CodeWidth:     6,
			DefaultSuffix: ".SZ",
			PrefixSuffixes: map[string]string{
				"6": ".SS",
			},
			ValidPrefixes: []string{
				"000", "001", "002", "003", "300", "301",
				"600", "601", "603", "605", "688",
			},
			MinListCount: 4500,
			ExcludeKeywords: []string{
				"ETF", "REIT", "BOND", "WARRANT", "TRUST", "FUND",
			},
			HotStart:  "2020-01-01",
			FullStart: "1990-01-01",
		},
		"hk-share": {
			ID:            "hk-share",
			CodeWidth:     4,
			DefaultSuffix: ".HK",
			MinListCount:  500,
			ExcludeKeywords: []string{
				"CBBC", "WARRANT", "RIGHTS", "ETF", "ETN",
				"REIT", "BOND", "TRUST", "FUND",
			},
			HotYears:  2,
			FullStart: "1990-01-01",
		},
		"jp-share": {
			ID:            "jp-share",
			CodeWidth:     4,
			DefaultSuffix: ".T",
			MinListCount:  1000,
			ExcludeKeywords: []string{
				"ETF", "ETN", "REIT", "FUND",
			},
			HotYears:  2,
			FullStart: "1990-01-01",
		},
	}
}

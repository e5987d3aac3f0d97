package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCode(t *testing.T) {
	markets := Builtin()

	testCases := []struct {
		name     string
		market   string
		raw      string
		expected string
		ok       bool
	}{
		{name: "cn shanghai code kept as-is", market: "cn-share", raw: "600519", expected: "600519", ok: true},
		{name: "cn code padded to six digits", market: "cn-share", raw: "1", expected: "000001", ok: true},
		{name: "cn shenzhen main board", market: "cn-share", raw: "000001", expected: "000001", ok: true},
		{name: "cn invalid prefix rejected", market: "cn-share", raw: "400001", expected: "", ok: false},
		{name: "cn non-digit noise stripped", market: "cn-share", raw: "sz300750", expected: "300750", ok: true},
		{name: "hk short code zero padded", market: "hk-share", raw: "700", expected: "0700", ok: true},
		{name: "hk code with separators", market: "hk-share", raw: "00-05", expected: "0005", ok: true},
		{name: "hk empty code rejected", market: "hk-share", raw: "N/A", expected: "", ok: false},
		{name: "jp four digit code", market: "jp-share", raw: "7203", expected: "7203", ok: true},
		{name: "jp overlong code rejected", market: "jp-share", raw: "72030", expected: "", ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, found := markets[tc.market]
			require.True(t, found)

			code, ok := m.NormalizeCode(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, code)
		})
	}
}

func TestExchangeSymbol(t *testing.T) {
	markets := Builtin()

	testCases := []struct {
		market   string
		code     string
		expected string
	}{
		{market: "cn-share", code: "600519", expected: "600519.SS"},
		{market: "cn-share", code: "688111", expected: "688111.SS"},
		{market: "cn-share", code: "000001", expected: "000001.SZ"},
		{market: "cn-share", code: "300750", expected: "300750.SZ"},
		{market: "hk-share", code: "0700", expected: "0700.HK"},
		{market: "jp-share", code: "7203", expected: "7203.T"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, markets[tc.market].ExchangeSymbol(tc.code))
		})
	}
}

func TestIsCommonEquity(t *testing.T) {
	hk := Builtin()["hk-share"]

	assert.True(t, hk.IsCommonEquity("TENCENT"))
	assert.True(t, hk.IsCommonEquity("HSBC HOLDINGS"))
	assert.False(t, hk.IsCommonEquity("TRACKER FUND OF HK"))
	assert.False(t, hk.IsCommonEquity("CS-HSI CBBC 2412A"))
	assert.False(t, hk.IsCommonEquity("ABC Warrant 2025"), "match is case-insensitive")
	assert.False(t, hk.IsCommonEquity("LINK REIT"))
}

func TestWindowStart(t *testing.T) {
	markets := Builtin()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	cn := markets["cn-share"]
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), cn.WindowStart(false, now))
	assert.Equal(t, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), cn.WindowStart(true, now))

	hk := markets["hk-share"]
	assert.Equal(t, now.AddDate(-2, 0, 0), hk.WindowStart(false, now))
}

func TestWindowStartRejectsMalformedDate(t *testing.T) {
	bad := Market{ID: "bad-share", FullStart: "01/01/1990"}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Panics(t, func() { bad.WindowStart(true, now) })
}

package cache

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"equitysync/internal/model"
)

// BarCache stores normalized daily bars as one CSV artifact per symbol for
// local reuse between runs.
type BarCache struct {
	dir string
}

// NewBarCache creates the cache directory if needed and returns the cache.
func NewBarCache(dir string) (*BarCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bar cache dir: %w", err)
	}
	return &BarCache{dir: dir}, nil
}

// Path returns the artifact path for a symbol.
func (c *BarCache) Path(symbol string) string {
	return filepath.Join(c.dir, symbol+".csv")
}

// Write replaces the symbol's artifact with the given bars. The write goes
// through a temp file and rename so a crashed writer never leaves a
// truncated artifact that would pass the staleness gate.
func (c *BarCache) Write(symbol string, bars []model.PriceBar) error {
	tmp, err := os.CreateTemp(c.dir, symbol+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write([]string{"date", "open", "high", "low", "close", "volume", "symbol"}); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache header: %w", err)
	}
	for _, b := range bars {
		record := []string{
			b.Date,
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatInt(b.Volume, 10),
			b.Symbol,
		}
		if err := w.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write cache row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush cache artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.Path(symbol)); err != nil {
		return fmt.Errorf("failed to publish cache artifact: %w", err)
	}
	return nil
}

// Read loads a symbol's cached bars. Missing artifacts return os.ErrNotExist.
func (c *BarCache) Read(symbol string) ([]model.PriceBar, error) {
	f, err := os.Open(c.Path(symbol))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read cache artifact: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	bars := make([]model.PriceBar, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < 7 {
			continue
		}
		open, _ := strconv.ParseFloat(rec[1], 64)
		high, _ := strconv.ParseFloat(rec[2], 64)
		low, _ := strconv.ParseFloat(rec[3], 64)
		cls, _ := strconv.ParseFloat(rec[4], 64)
		volume, _ := strconv.ParseInt(rec[5], 10, 64)
		bars = append(bars, model.PriceBar{
			Date:   rec[0],
			Open:   open,
			High:   high,
			Low:    low,
			Close:  cls,
			Volume: volume,
			Symbol: rec[6],
		})
	}
	return bars, nil
}

// CachedSymbols lists the symbols that currently have an artifact.
func (c *BarCache) CachedSymbols() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, err
	}
	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != ".csv" {
			continue
		}
		symbols = append(symbols, name[:len(name)-len(".csv")])
	}
	return symbols, nil
}

// ListCache stores a market's resolved symbol catalog as a same-day JSON
// artifact so repeated runs on the same day skip the list sources entirely.
type ListCache struct {
	dir       string
	staleness *Staleness
}

// NewListCache creates the cache directory if needed and returns the cache.
func NewListCache(dir string, staleness *Staleness) (*ListCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create list cache dir: %w", err)
	}
	return &ListCache{dir: dir, staleness: staleness}, nil
}

func (c *ListCache) path(marketID string) string {
	return filepath.Join(c.dir, marketID+"_list.json")
}

// Load returns the cached catalog if it was written today, along with a hit
// flag. Stale or unreadable artifacts are treated as misses.
func (c *ListCache) Load(marketID string) ([]model.SymbolRecord, bool) {
	path := c.path(marketID)
	if !c.staleness.WrittenToday(path, 2) {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var records []model.SymbolRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false
	}
	return records, true
}

// Store writes the resolved catalog for today's runs.
func (c *ListCache) Store(marketID string, records []model.SymbolRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal symbol list: %w", err)
	}
	if err := os.WriteFile(c.path(marketID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write symbol list cache: %w", err)
	}
	return nil
}

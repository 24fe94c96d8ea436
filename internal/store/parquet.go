package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"goldenbar/internal/domain"
)

// MirrorStore keeps a columnar copy of every fetched minute bar in Parquet
// files, organized by symbol and year. The csv.xz caches stay the source of
// truth; the mirror exists for ad-hoc analytical reads. A nil *MirrorStore is
// a no-op, so the mirror can be disabled by configuration.
type MirrorStore struct {
	DataDir string
}

// NewMirrorStore creates a MirrorStore rooted at the given data directory.
func NewMirrorStore(dataDir string) *MirrorStore {
	return &MirrorStore{DataDir: dataDir}
}

// barRecord is the Parquet schema for minute bar data.
type barRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

// Mirror merges bars into the Parquet files for their symbol and year.
// Records are deduplicated by (symbol, timestamp) with incoming bars
// preferred over existing ones.
func (s *MirrorStore) Mirror(_ context.Context, bars []domain.Bar) error {
	if s == nil || len(bars) == 0 {
		return nil
	}

	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]barRecord)
	for _, b := range bars {
		k := key{symbol: b.Symbol, year: b.Timestamp.In(domain.CST).Year()}
		groups[k] = append(groups[k], barRecord{
			Symbol:    b.Symbol,
			Timestamp: b.Timestamp.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	for k, records := range groups {
		path := s.barPath(k.symbol, k.year)

		// Read existing records to merge.
		existing, _ := readParquetFile[barRecord](path)
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("mirroring bars for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// ReadBars reads mirrored bars for the given symbol within [start, end].
func (s *MirrorStore) ReadBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if s == nil {
		return nil, nil
	}

	var bars []domain.Bar
	for year := start.In(domain.CST).Year(); year <= end.In(domain.CST).Year(); year++ {
		records, err := readParquetFile[barRecord](s.barPath(symbol, year))
		if err != nil {
			// No file for this year.
			continue
		}
		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).In(domain.CST)
			if !ts.Before(start) && !ts.After(end) {
				bars = append(bars, domain.Bar{
					Symbol:    r.Symbol,
					Timestamp: ts,
					Open:      r.Open,
					High:      r.High,
					Low:       r.Low,
					Close:     r.Close,
					Volume:    r.Volume,
				})
			}
		}
	}
	return bars, nil
}

// barPath returns the filesystem path for a mirrored bar file.
// Layout: <dataDir>/<SYMBOL>/<YYYY>.parquet
func (s *MirrorStore) barPath(symbol string, year int) string {
	return filepath.Join(s.DataDir, symbol, fmt.Sprintf("%d.parquet", year))
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeBarRecords deduplicates bar records by (symbol, timestamp), preferring
// incoming records over existing ones. Results are sorted by timestamp.
func mergeBarRecords(existing, incoming []barRecord) []barRecord {
	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]barRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Timestamp}] = r
	}

	merged := make([]barRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}

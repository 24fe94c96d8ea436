package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ulikunitz/xz"

	"goldenbar/internal/domain"
)

// Compile-time interface checks.
var _ SeriesStore = (*CSVStore)(nil)
var _ CalendarStore = (*CSVStore)(nil)

const (
	timestampLayout = "2006-01-02 15:04:05"
	dateLayout      = "2006-01-02"
)

// CSVStore keeps each cached series as one xz-compressed CSV file under
// DataDir: {symbol}-{tag}.csv.xz for per-symbol series and calendar.csv.xz
// for the trading calendar. Files carry a header row and are rewritten whole
// on every save.
type CSVStore struct {
	DataDir string
}

// NewCSVStore creates a CSVStore rooted at the given data directory.
func NewCSVStore(dataDir string) *CSVStore {
	return &CSVStore{DataDir: dataDir}
}

func (s *CSVStore) seriesPath(symbol, tag string) string {
	return filepath.Join(s.DataDir, fmt.Sprintf("%s-%s.csv.xz", symbol, tag))
}

func (s *CSVStore) calendarPath() string {
	return filepath.Join(s.DataDir, "calendar.csv.xz")
}

// ---------------------------------------------------------------------------
// xz-wrapped CSV I/O
// ---------------------------------------------------------------------------

// readCSVXZ reads an xz-compressed CSV file and returns its rows with the
// header stripped. A missing file yields no rows and no error.
func readCSVXZ(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	xr, err := xz.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening xz stream %s: %w", path, err)
	}

	r := csv.NewReader(xr)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv %s: %w", path, err)
	}
	if len(rows) > 0 {
		rows = rows[1:] // header
	}
	return rows, nil
}

// writeCSVXZ replaces path with an xz-compressed CSV holding the header and
// rows. The parent directory is created on demand.
func writeCSVXZ(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	xw, err := xz.NewWriter(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("opening xz stream %s: %w", path, err)
	}

	w := csv.NewWriter(xw)
	if err := w.Write(header); err != nil {
		xw.Close()
		f.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		xw.Close()
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		xw.Close()
		f.Close()
		return err
	}

	if err := xw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("closing xz stream %s: %w", path, err)
	}
	return f.Close()
}

// ---------------------------------------------------------------------------
// Minute bars
// ---------------------------------------------------------------------------

// WriteBars replaces the symbol's minute bar cache.
func (s *CSVStore) WriteBars(_ context.Context, symbol string, bars []domain.Bar) error {
	rows := make([][]string, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, []string{
			b.Timestamp.In(domain.CST).Format(timestampLayout),
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			strconv.FormatInt(b.Volume, 10),
		})
	}
	header := []string{"eob", "open", "high", "low", "close", "volume"}
	return writeCSVXZ(s.seriesPath(symbol, TagMinute), header, rows)
}

// ReadBars returns all cached minute bars for the symbol, oldest first.
func (s *CSVStore) ReadBars(_ context.Context, symbol string) ([]domain.Bar, error) {
	path := s.seriesPath(symbol, TagMinute)
	rows, err := readCSVXZ(path)
	if err != nil {
		return nil, err
	}

	bars := make([]domain.Bar, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("%s row %d: want 6 fields, got %d", path, i+1, len(row))
		}
		ts, err := time.ParseInLocation(timestampLayout, row[0], domain.CST)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		cls, _ := strconv.ParseFloat(row[4], 64)
		vol, _ := strconv.ParseInt(row[5], 10, 64)
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: ts,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     cls,
			Volume:    vol,
		})
	}
	return bars, nil
}

// ---------------------------------------------------------------------------
// Valuations
// ---------------------------------------------------------------------------

// WriteValuations replaces the symbol's valuation cache.
func (s *CSVStore) WriteValuations(_ context.Context, symbol string, vals []domain.ValuationRow) error {
	rows := make([][]string, 0, len(vals))
	for _, v := range vals {
		rows = append(rows, []string{
			v.Date.In(domain.CST).Format(dateLayout),
			formatFloat(v.PETTM),
			formatFloat(v.PELYR),
			formatFloat(v.PBLYR),
			formatFloat(v.PSTTM),
		})
	}
	header := []string{"trade_date", "pe_ttm", "pe_lyr", "pb_lyr", "ps_ttm"}
	return writeCSVXZ(s.seriesPath(symbol, TagValuation), header, rows)
}

// ReadValuations returns the symbol's cached valuation series.
func (s *CSVStore) ReadValuations(_ context.Context, symbol string) ([]domain.ValuationRow, error) {
	path := s.seriesPath(symbol, TagValuation)
	rows, err := readCSVXZ(path)
	if err != nil {
		return nil, err
	}

	vals := make([]domain.ValuationRow, 0, len(rows))
	for i, row := range rows {
		if len(row) < 5 {
			return nil, fmt.Errorf("%s row %d: want 5 fields, got %d", path, i+1, len(row))
		}
		d, err := time.ParseInLocation(dateLayout, row[0], domain.CST)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		peTTM, _ := strconv.ParseFloat(row[1], 64)
		peLYR, _ := strconv.ParseFloat(row[2], 64)
		pbLYR, _ := strconv.ParseFloat(row[3], 64)
		psTTM, _ := strconv.ParseFloat(row[4], 64)
		vals = append(vals, domain.ValuationRow{
			Date:  d,
			PETTM: peTTM,
			PELYR: peLYR,
			PBLYR: pbLYR,
			PSTTM: psTTM,
		})
	}
	return vals, nil
}

// ---------------------------------------------------------------------------
// Daily indicator rows
// ---------------------------------------------------------------------------

// WriteDailyRows replaces the symbol's derived daily row cache.
func (s *CSVStore) WriteDailyRows(_ context.Context, symbol string, daily []domain.DailyRow) error {
	rows := make([][]string, 0, len(daily))
	for _, d := range daily {
		rows = append(rows, []string{
			d.Date.In(domain.CST).Format(dateLayout),
			formatFloat(d.Open),
			formatFloat(d.High),
			formatFloat(d.Low),
			formatFloat(d.Close),
			strconv.FormatInt(d.Volume, 10),
			formatFloat(d.GoldenAvg),
			formatFloat(d.Cost),
			formatFloat(d.CostEarly),
			formatFloat(d.CostLate),
			strconv.FormatInt(d.V931, 10),
			strconv.FormatInt(d.V932, 10),
			strconv.FormatInt(d.V935, 10),
			strconv.FormatInt(d.V940, 10),
			strconv.FormatInt(d.V150, 10),
			formatFloat(d.Up),
			formatFloat(d.Down),
			formatFloat(d.PE),
		})
	}
	header := []string{
		"date", "open", "high", "low", "close", "volume",
		"golden_avg", "cost", "cost_early", "cost_late",
		"v931", "v932", "v935", "v940", "v150",
		"up", "down", "pe",
	}
	return writeCSVXZ(s.seriesPath(symbol, TagDaily), header, rows)
}

// ReadDailyRows returns the symbol's cached derived daily rows.
func (s *CSVStore) ReadDailyRows(_ context.Context, symbol string) ([]domain.DailyRow, error) {
	path := s.seriesPath(symbol, TagDaily)
	rows, err := readCSVXZ(path)
	if err != nil {
		return nil, err
	}

	daily := make([]domain.DailyRow, 0, len(rows))
	for i, row := range rows {
		if len(row) < 18 {
			return nil, fmt.Errorf("%s row %d: want 18 fields, got %d", path, i+1, len(row))
		}
		d, err := time.ParseInLocation(dateLayout, row[0], domain.CST)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		r := domain.DailyRow{Date: d}
		r.Open, _ = strconv.ParseFloat(row[1], 64)
		r.High, _ = strconv.ParseFloat(row[2], 64)
		r.Low, _ = strconv.ParseFloat(row[3], 64)
		r.Close, _ = strconv.ParseFloat(row[4], 64)
		r.Volume, _ = strconv.ParseInt(row[5], 10, 64)
		r.GoldenAvg, _ = strconv.ParseFloat(row[6], 64)
		r.Cost, _ = strconv.ParseFloat(row[7], 64)
		r.CostEarly, _ = strconv.ParseFloat(row[8], 64)
		r.CostLate, _ = strconv.ParseFloat(row[9], 64)
		r.V931, _ = strconv.ParseInt(row[10], 10, 64)
		r.V932, _ = strconv.ParseInt(row[11], 10, 64)
		r.V935, _ = strconv.ParseInt(row[12], 10, 64)
		r.V940, _ = strconv.ParseInt(row[13], 10, 64)
		r.V150, _ = strconv.ParseInt(row[14], 10, 64)
		r.Up, _ = strconv.ParseFloat(row[15], 64)
		r.Down, _ = strconv.ParseFloat(row[16], 64)
		r.PE, _ = strconv.ParseFloat(row[17], 64)
		daily = append(daily, r)
	}
	return daily, nil
}

// ---------------------------------------------------------------------------
// Calendar
// ---------------------------------------------------------------------------

// WriteCalendar replaces the calendar cache.
func (s *CSVStore) WriteCalendar(_ context.Context, days []domain.CalendarDay) error {
	rows := make([][]string, 0, len(days))
	for _, d := range days {
		trading := "0"
		if d.Trading {
			trading = "1"
		}
		rows = append(rows, []string{
			d.Date.In(domain.CST).Format(dateLayout),
			trading,
		})
	}
	header := []string{"date", "trading"}
	return writeCSVXZ(s.calendarPath(), header, rows)
}

// ReadCalendar returns all cached calendar days, oldest first.
func (s *CSVStore) ReadCalendar(_ context.Context) ([]domain.CalendarDay, error) {
	path := s.calendarPath()
	rows, err := readCSVXZ(path)
	if err != nil {
		return nil, err
	}

	days := make([]domain.CalendarDay, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("%s row %d: want 2 fields, got %d", path, i+1, len(row))
		}
		d, err := time.ParseInLocation(dateLayout, row[0], domain.CST)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		days = append(days, domain.CalendarDay{Date: d, Trading: row[1] == "1"})
	}
	return days, nil
}

// formatFloat renders a float without exponent notation and without
// trailing-zero padding.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

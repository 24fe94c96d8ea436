// Package store persists the cached market data series: per-symbol csv.xz
// flat files for bars, valuations, and derived daily rows, a SQLite roster of
// symbol reference data, and an optional parquet mirror of minute bars.
package store

import (
	"context"

	"goldenbar/internal/domain"
)

// Series tags name the per-symbol cache files ({symbol}-{tag}.csv.xz).
const (
	TagMinute    = "1m" // minute OHLCV bars
	TagValuation = "pe" // daily valuation series
	TagDaily     = "vv" // derived daily indicator rows
)

// SeriesStore persists and retrieves the per-symbol cached series. Every
// write replaces the whole file for that symbol and tag.
type SeriesStore interface {
	// ReadBars returns all cached minute bars for the symbol, oldest first.
	// A missing cache file yields an empty slice, not an error.
	ReadBars(ctx context.Context, symbol string) ([]domain.Bar, error)

	// WriteBars replaces the symbol's minute bar cache.
	WriteBars(ctx context.Context, symbol string, bars []domain.Bar) error

	// ReadValuations returns the symbol's cached valuation series.
	ReadValuations(ctx context.Context, symbol string) ([]domain.ValuationRow, error)

	// WriteValuations replaces the symbol's valuation cache.
	WriteValuations(ctx context.Context, symbol string, rows []domain.ValuationRow) error

	// ReadDailyRows returns the symbol's cached derived daily rows.
	ReadDailyRows(ctx context.Context, symbol string) ([]domain.DailyRow, error)

	// WriteDailyRows replaces the symbol's daily row cache.
	WriteDailyRows(ctx context.Context, symbol string, rows []domain.DailyRow) error
}

// CalendarStore persists the classified trading calendar.
type CalendarStore interface {
	// ReadCalendar returns all cached calendar days, oldest first. A missing
	// cache file yields an empty slice, not an error.
	ReadCalendar(ctx context.Context) ([]domain.CalendarDay, error)

	// WriteCalendar replaces the calendar cache.
	WriteCalendar(ctx context.Context, days []domain.CalendarDay) error
}

// RosterStore persists symbol reference data.
type RosterStore interface {
	// SaveSymbols upserts a batch of symbol reference rows.
	SaveSymbols(ctx context.Context, metas []domain.SymbolMeta) error

	// Symbol retrieves the reference row for one symbol, or nil when absent.
	Symbol(ctx context.Context, symbol string) (*domain.SymbolMeta, error)

	// Symbols returns all reference rows ordered by symbol.
	Symbols(ctx context.Context) ([]domain.SymbolMeta, error)

	// Count returns the number of roster rows.
	Count(ctx context.Context) (int, error)
}

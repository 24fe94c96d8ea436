// Package domain defines the shared data types for quotes, daily indicator
// rows, valuation series, and market reference data.
package domain

import "time"

// Granularity identifies a bar series frequency as used by the quote API.
type Granularity string

const (
	GranularityDaily  Granularity = "1d"
	GranularityMinute Granularity = "1m"
	GranularityFive   Granularity = "5m"
)

// CST is the exchange timezone. All bar timestamps are interpreted in it.
var CST = time.FixedZone("CST", 8*3600)

// MarketClose is the wall-clock close of the afternoon session.
const MarketClose = "15:00:00"

// Bar is one OHLCV sample for a symbol at a timestamp. Volume is a raw
// share count.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// GoldenPrice returns the representative per-bar price
// (4*close + 2*open + high + low) / 8.
func (b Bar) GoldenPrice() float64 {
	return (4*b.Close + 2*b.Open + b.High + b.Low) / 8
}

// DailyRow is one derived indicator row per trading date, computed from that
// date's minute bars. Once the date's session has closed the row is final.
type DailyRow struct {
	Date time.Time

	// Daily kbar rollup.
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64

	// GoldenAvg is the volume-weighted golden price over the whole day.
	GoldenAvg float64

	// Cost-basis prices over volume-filtered bars: whole day, up to 10:30,
	// and after 10:30.
	Cost      float64
	CostEarly float64
	CostLate  float64

	// Fixed-minute volume snapshots.
	V931 int64 // bar at exactly 09:31
	V932 int64 // bar at exactly 09:32
	V935 int64 // 09:30-09:35 window sum
	V940 int64 // 09:36-09:40 window sum
	V150 int64 // bar at exactly 15:00

	// Share of bars (out of the 240-bar nominal session, in percent) whose
	// close rose above / fell below the previous bar's open.
	Up   float64
	Down float64

	// PE is the trailing P/E joined from the valuation series; zero for
	// funds and indices.
	PE float64
}

// ValuationRow is one daily valuation sample for a symbol.
type ValuationRow struct {
	Date  time.Time
	PETTM float64
	PELYR float64
	PBLYR float64
	PSTTM float64
}

// SecType classifies a security in the market roster.
type SecType int

const (
	SecTypeStock SecType = 1010
	SecTypeFund  SecType = 1020
	SecTypeIndex SecType = 1070
)

// SymbolMeta is the static reference row for one symbol.
type SymbolMeta struct {
	Symbol       string // e.g. "SHSE.601088"
	SecID        string
	Name         string
	Abbr         string
	Exchange     string
	SecType      SecType
	SecSubType   int
	ListedDate   time.Time
	DelistedDate time.Time
}

// IsStock reports whether the symbol is an individual equity (as opposed to
// a fund or index), which decides whether a valuation series exists for it.
func (m SymbolMeta) IsStock() bool { return m.SecType == SecTypeStock }

// CalendarDay is one classified calendar date.
type CalendarDay struct {
	Date    time.Time
	Trading bool
}

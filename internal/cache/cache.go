// Package cache implements the incremental cache engine. Each (symbol, kind)
// cache moves through NO_CACHE → STALE → FRESH against the calendar's
// freshness boundary; only the missing window is ever fetched, and a fresh
// cache short-circuits before any network access.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"goldenbar/internal/aggregate"
	"goldenbar/internal/calendar"
	"goldenbar/internal/domain"
	"goldenbar/internal/store"
)

// State classifies a cache against the freshness boundary.
type State int

const (
	StateNoCache State = iota
	StateStale
	StateFresh
)

func (s State) String() string {
	switch s {
	case StateNoCache:
		return "NO_CACHE"
	case StateStale:
		return "STALE"
	case StateFresh:
		return "FRESH"
	default:
		return "UNKNOWN"
	}
}

// QuoteSource serves recent bars and valuations from the live quote API.
type QuoteSource interface {
	MinuteHistoryByDays(ctx context.Context, symbol string, days []time.Time, maxInflight int) ([]domain.Bar, error)
	DailyValuation(ctx context.Context, symbol string, sdate, edate time.Time) ([]domain.ValuationRow, error)
}

// ArchiveSource serves older history from the static file server.
type ArchiveSource interface {
	FetchRange(ctx context.Context, symbol, tag string, sdate, edate time.Time) ([]domain.Bar, error)
}

// ManagerConfig wires a Manager.
type ManagerConfig struct {
	Store    store.SeriesStore
	Calendar *calendar.Calendar
	Quote    QuoteSource
	Archive  ArchiveSource
	Mirror   *store.MirrorStore // nil disables the parquet mirror
	Log      *slog.Logger

	Lookback    int // cache window in sessions
	MaxInflight int // per-day minute fetch fan-out bound
}

// Manager keeps the per-symbol caches aligned with the freshness boundary.
type Manager struct {
	store    store.SeriesStore
	cal      *calendar.Calendar
	quote    QuoteSource
	archive  ArchiveSource
	mirror   *store.MirrorStore
	log      *slog.Logger
	now      func() time.Time
	lookback int
	inflight int
}

// NewManager creates a Manager from the given wiring.
func NewManager(cfg ManagerConfig) *Manager {
	lookback := cfg.Lookback
	if lookback <= 0 {
		lookback = 360
	}
	inflight := cfg.MaxInflight
	if inflight <= 0 {
		inflight = 50
	}
	return &Manager{
		store:    cfg.Store,
		cal:      cfg.Calendar,
		quote:    cfg.Quote,
		archive:  cfg.Archive,
		mirror:   cfg.Mirror,
		log:      cfg.Log.With("component", "cache"),
		now:      time.Now,
		lookback: lookback,
		inflight: inflight,
	}
}

func stateOf(last, boundary time.Time, empty bool) State {
	switch {
	case empty:
		return StateNoCache
	case last.Before(boundary):
		return StateStale
	default:
		return StateFresh
	}
}

// ---------------------------------------------------------------------------
// Minute bars
// ---------------------------------------------------------------------------

// EnsureMinuteBars returns the symbol's minute bar series covering the
// lookback window through the freshness boundary, fetching and persisting
// whatever is missing. A fresh cache is returned without any fetch.
func (m *Manager) EnsureMinuteBars(ctx context.Context, meta domain.SymbolMeta) ([]domain.Bar, error) {
	cached, err := m.store.ReadBars(ctx, meta.Symbol)
	if err != nil {
		return nil, fmt.Errorf("reading minute cache for %s: %w", meta.Symbol, err)
	}

	boundary := m.cal.Boundary(m.now(), false)
	var last time.Time
	if len(cached) > 0 {
		last = cached[len(cached)-1].Timestamp
	}
	state := stateOf(last, boundary, len(cached) == 0)
	if state == StateFresh {
		return cached, nil
	}

	incompleteLastDay := state == StateStale && last.Before(dateOf(last).Add(15*time.Hour))
	days := m.gapDays(state, last, boundary, meta, incompleteLastDay)
	if len(days) == 0 {
		return cached, nil
	}

	fetched, err := m.fetchMinuteBars(ctx, meta, days)
	if err != nil {
		return nil, err
	}
	if len(fetched) == 0 {
		m.log.Debug("no minute bars obtained, cache unchanged",
			"symbol", meta.Symbol, "state", state.String(), "days", len(days))
		return cached, nil
	}

	merged := mergeBars(cached, fetched)

	if err := m.mirror.Mirror(ctx, fetched); err != nil {
		m.log.Debug("parquet mirror write failed", "symbol", meta.Symbol, "err", err)
	}
	if err := m.store.WriteBars(ctx, meta.Symbol, merged); err != nil {
		return nil, fmt.Errorf("writing minute cache for %s: %w", meta.Symbol, err)
	}

	m.log.Info("minute cache updated", "symbol", meta.Symbol,
		"state", state.String(), "fetched", len(fetched), "total", len(merged))
	return merged, nil
}

// gapDays lists the sessions a stale or empty cache is missing, oldest
// first, clipped to the symbol's listing date. For the minute kind a last
// day persisted before its 15:00 close is incomplete and refetched too; the
// merge keeps the newly fetched bars on duplicate timestamps.
func (m *Manager) gapDays(state State, last, boundary time.Time, meta domain.SymbolMeta, refetchLastDay bool) []time.Time {
	boundaryDay := dateOf(boundary)

	var days []time.Time
	if state == StateNoCache {
		days = m.cal.LastSessions(m.lookback, boundaryDay)
	} else {
		incl := calendar.IncludeRight
		if refetchLastDay {
			incl = calendar.IncludeBoth
		}
		days = m.cal.TradingDays(dateOf(last), boundaryDay, incl)
	}
	if meta.ListedDate.IsZero() {
		return days
	}
	listed := dateOf(meta.ListedDate)
	for len(days) > 0 && days[0].Before(listed) {
		days = days[1:]
	}
	return days
}

// fetchMinuteBars pulls the archive's coverage of the window first and fills
// the rest, from the day after the archive's last bar, via the quote API.
// Live index volumes come back in shares while the archive stores them in
// lots, so they are scaled down to match.
func (m *Manager) fetchMinuteBars(ctx context.Context, meta domain.SymbolMeta, days []time.Time) ([]domain.Bar, error) {
	archived, err := m.archive.FetchRange(ctx, meta.Symbol, store.TagMinute, days[0], days[len(days)-1])
	if err != nil {
		return nil, fmt.Errorf("archive fetch for %s: %w", meta.Symbol, err)
	}

	remaining := days
	if len(archived) > 0 {
		archiveLast := dateOf(archived[len(archived)-1].Timestamp)
		for len(remaining) > 0 && !remaining[0].After(archiveLast) {
			remaining = remaining[1:]
		}
	}

	live, err := m.quote.MinuteHistoryByDays(ctx, meta.Symbol, remaining, m.inflight)
	if err != nil {
		return nil, fmt.Errorf("quote fetch for %s: %w", meta.Symbol, err)
	}
	if meta.SecType == domain.SecTypeIndex {
		for i := range live {
			live[i].Volume /= 100
		}
	}
	return append(archived, live...), nil
}

// ---------------------------------------------------------------------------
// Valuations
// ---------------------------------------------------------------------------

// EnsureValuations returns the symbol's valuation series through the
// freshness boundary, fetching and persisting whatever is missing.
func (m *Manager) EnsureValuations(ctx context.Context, meta domain.SymbolMeta) ([]domain.ValuationRow, error) {
	cached, err := m.store.ReadValuations(ctx, meta.Symbol)
	if err != nil {
		return nil, fmt.Errorf("reading valuation cache for %s: %w", meta.Symbol, err)
	}

	boundary := m.cal.Boundary(m.now(), true)
	var last time.Time
	if len(cached) > 0 {
		last = cached[len(cached)-1].Date
	}
	state := stateOf(last, boundary, len(cached) == 0)
	if state == StateFresh {
		return cached, nil
	}

	days := m.gapDays(state, last, boundary, meta, false)
	if len(days) == 0 {
		return cached, nil
	}

	fetched, err := m.quote.DailyValuation(ctx, meta.Symbol, days[0], days[len(days)-1])
	if err != nil {
		return nil, fmt.Errorf("valuation fetch for %s: %w", meta.Symbol, err)
	}
	if len(fetched) == 0 {
		m.log.Debug("no valuations obtained, cache unchanged",
			"symbol", meta.Symbol, "state", state.String())
		return cached, nil
	}

	merged := mergeValuations(cached, fetched)
	if err := m.store.WriteValuations(ctx, meta.Symbol, merged); err != nil {
		return nil, fmt.Errorf("writing valuation cache for %s: %w", meta.Symbol, err)
	}

	m.log.Info("valuation cache updated", "symbol", meta.Symbol,
		"state", state.String(), "fetched", len(fetched), "total", len(merged))
	return merged, nil
}

// ---------------------------------------------------------------------------
// Daily aggregate rows
// ---------------------------------------------------------------------------

// EnsureDaily returns the symbol's derived daily rows through the freshness
// boundary, aggregating them from minute bars where missing. During an open
// session a provisional row for today is appended in memory only, and the
// merged frame is persisted only when the cache was previously empty or the
// session has closed.
func (m *Manager) EnsureDaily(ctx context.Context, meta domain.SymbolMeta) ([]domain.DailyRow, error) {
	cached, err := m.store.ReadDailyRows(ctx, meta.Symbol)
	if err != nil {
		return nil, fmt.Errorf("reading daily cache for %s: %w", meta.Symbol, err)
	}

	now := m.now()
	boundary := m.cal.Boundary(now, true)
	var last time.Time
	if len(cached) > 0 {
		last = cached[len(cached)-1].Date
	}
	state := stateOf(last, boundary, len(cached) == 0)

	rows := cached
	if state != StateFresh {
		rows, err = m.fillDaily(ctx, meta, cached, state, boundary)
		if err != nil {
			return nil, err
		}
	}

	if m.cal.MidSession(now) {
		if prov, ok := m.provisionalToday(ctx, meta, rows, now); ok {
			rows = append(append([]domain.DailyRow(nil), rows...), prov)
		}
	}
	return rows, nil
}

// fillDaily aggregates the missing dates from minute bars, joins the
// valuation series for stocks, merges, and persists under the daily kind's
// gating rule.
func (m *Manager) fillDaily(ctx context.Context, meta domain.SymbolMeta, cached []domain.DailyRow, state State, boundary time.Time) ([]domain.DailyRow, error) {
	bars, err := m.EnsureMinuteBars(ctx, meta)
	if err != nil {
		return nil, err
	}

	var last time.Time
	if len(cached) > 0 {
		last = cached[len(cached)-1].Date
	}
	var gap []domain.Bar
	for _, b := range bars {
		d := dateOf(b.Timestamp)
		if state == StateStale && !d.After(last) {
			continue
		}
		if d.After(boundary) {
			continue
		}
		gap = append(gap, b)
	}

	fresh := aggregate.Rows(gap)
	if len(fresh) == 0 {
		m.log.Debug("no daily rows derived, cache unchanged",
			"symbol", meta.Symbol, "state", state.String())
		return cached, nil
	}

	if meta.IsStock() {
		vals, err := m.EnsureValuations(ctx, meta)
		if err != nil {
			return nil, err
		}
		joinPE(fresh, vals)
	}

	merged := mergeDaily(cached, fresh)

	if len(cached) == 0 || !m.cal.MidSession(m.now()) {
		if err := m.store.WriteDailyRows(ctx, meta.Symbol, merged); err != nil {
			return nil, fmt.Errorf("writing daily cache for %s: %w", meta.Symbol, err)
		}
	} else {
		m.log.Debug("mid-session daily update kept in memory only", "symbol", meta.Symbol)
	}

	m.log.Info("daily cache updated", "symbol", meta.Symbol,
		"state", state.String(), "derived", len(fresh), "total", len(merged))
	return merged, nil
}

// provisionalToday synthesizes today's row from the session's minute bars so
// far. Its PE is the previous row's PE scaled by the provisional close over
// the previous close; the row is never persisted.
func (m *Manager) provisionalToday(ctx context.Context, meta domain.SymbolMeta, rows []domain.DailyRow, now time.Time) (domain.DailyRow, bool) {
	today := dateOf(now)
	if len(rows) > 0 && rows[len(rows)-1].Date.Equal(today) {
		return domain.DailyRow{}, false
	}

	bars, err := m.quote.MinuteHistoryByDays(ctx, meta.Symbol, []time.Time{today}, 1)
	if err != nil || len(bars) == 0 {
		return domain.DailyRow{}, false
	}
	if meta.SecType == domain.SecTypeIndex {
		for i := range bars {
			bars[i].Volume /= 100
		}
	}

	row := aggregate.Daily(bars)
	if len(rows) > 0 {
		prev := rows[len(rows)-1]
		if prev.Close > 0 && prev.PE != 0 {
			row.PE = prev.PE * row.Close / prev.Close
		}
	}
	return row, true
}

// joinPE fills each row's PE from the valuation sample of the same date.
func joinPE(rows []domain.DailyRow, vals []domain.ValuationRow) {
	byDate := make(map[time.Time]float64, len(vals))
	for _, v := range vals {
		byDate[dateOf(v.Date)] = v.PETTM
	}
	for i := range rows {
		if pe, ok := byDate[dateOf(rows[i].Date)]; ok {
			rows[i].PE = pe
		}
	}
}

// ---------------------------------------------------------------------------
// Probing
// ---------------------------------------------------------------------------

// Probe reports the state of each cache kind for a symbol without fetching.
func (m *Manager) Probe(ctx context.Context, symbol string) (map[string]State, error) {
	now := m.now()
	minuteBoundary := m.cal.Boundary(now, false)
	dailyBoundary := m.cal.Boundary(now, true)

	states := make(map[string]State, 3)

	bars, err := m.store.ReadBars(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var last time.Time
	if len(bars) > 0 {
		last = bars[len(bars)-1].Timestamp
	}
	states[store.TagMinute] = stateOf(last, minuteBoundary, len(bars) == 0)

	vals, err := m.store.ReadValuations(ctx, symbol)
	if err != nil {
		return nil, err
	}
	last = time.Time{}
	if len(vals) > 0 {
		last = vals[len(vals)-1].Date
	}
	states[store.TagValuation] = stateOf(last, dailyBoundary, len(vals) == 0)

	rows, err := m.store.ReadDailyRows(ctx, symbol)
	if err != nil {
		return nil, err
	}
	last = time.Time{}
	if len(rows) > 0 {
		last = rows[len(rows)-1].Date
	}
	states[store.TagDaily] = stateOf(last, dailyBoundary, len(rows) == 0)

	return states, nil
}

// ---------------------------------------------------------------------------
// Merging
// ---------------------------------------------------------------------------

// mergeBars combines two runs, dropping duplicate timestamps in favour of
// the incoming bar, ascending.
func mergeBars(existing, incoming []domain.Bar) []domain.Bar {
	seen := make(map[int64]domain.Bar, len(existing)+len(incoming))
	for _, b := range existing {
		seen[b.Timestamp.Unix()] = b
	}
	for _, b := range incoming {
		seen[b.Timestamp.Unix()] = b
	}
	merged := make([]domain.Bar, 0, len(seen))
	for _, b := range seen {
		merged = append(merged, b)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged
}

func mergeValuations(existing, incoming []domain.ValuationRow) []domain.ValuationRow {
	seen := make(map[int64]domain.ValuationRow, len(existing)+len(incoming))
	for _, v := range existing {
		seen[v.Date.Unix()] = v
	}
	for _, v := range incoming {
		seen[v.Date.Unix()] = v
	}
	merged := make([]domain.ValuationRow, 0, len(seen))
	for _, v := range seen {
		merged = append(merged, v)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Date.Before(merged[j].Date)
	})
	return merged
}

func mergeDaily(existing, incoming []domain.DailyRow) []domain.DailyRow {
	seen := make(map[int64]domain.DailyRow, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Date.Unix()] = r
	}
	for _, r := range incoming {
		seen[r.Date.Unix()] = r
	}
	merged := make([]domain.DailyRow, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Date.Before(merged[j].Date)
	})
	return merged
}

func dateOf(t time.Time) time.Time {
	t = t.In(domain.CST)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, domain.CST)
}

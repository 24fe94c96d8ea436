// Package ths implements the indicator gathering run: for each configured
// symbol it brings the local caches up to the freshness boundary, derives the
// daily indicator rows, and exports the THS script families.
package ths

import (
	"context"
	"fmt"
	"log/slog"

	"goldenbar/internal/cache"
	"goldenbar/internal/calendar"
	"goldenbar/internal/domain"
	"goldenbar/internal/gather"
	"goldenbar/internal/render"
	"goldenbar/internal/store"
)

// ---------------------------------------------------------------------------
// Compile-time interface check
// ---------------------------------------------------------------------------

var _ gather.Gatherer = (*IndicatorGatherer)(nil)
var _ CacheEngine = (*cache.Manager)(nil)

// overlaySymbol additionally gets the market-wide volume overlay script, fed
// by its own recent minute bars.
const overlaySymbol = "SHSE.000001"

// overlaySessions is how many recent sessions of minute bars the overlay
// script embeds.
const overlaySessions = 10

// RosterSource serves the full market reference listing.
type RosterSource interface {
	AllInfos(ctx context.Context) ([]domain.SymbolMeta, error)
}

// CacheEngine keeps the per-symbol series caches aligned with the freshness
// boundary and serves their contents.
type CacheEngine interface {
	EnsureDaily(ctx context.Context, meta domain.SymbolMeta) ([]domain.DailyRow, error)
	EnsureMinuteBars(ctx context.Context, meta domain.SymbolMeta) ([]domain.Bar, error)
}

// Config wires an IndicatorGatherer.
type Config struct {
	Symbols  []string
	IsIndex  func(symbol string) bool
	Roster   store.RosterStore
	Source   RosterSource
	Cache    CacheEngine
	Calendar *calendar.Calendar
	Renderer *render.Renderer
	Log      *slog.Logger
}

// IndicatorGatherer runs one update pass over the configured symbol pool.
// Per-symbol failures are logged and skipped so one bad symbol cannot stall
// the rest of the pool.
type IndicatorGatherer struct {
	symbols  []string
	isIndex  func(string) bool
	roster   store.RosterStore
	source   RosterSource
	cache    CacheEngine
	cal      *calendar.Calendar
	renderer *render.Renderer
	log      *slog.Logger
}

// New creates an IndicatorGatherer from the given wiring.
func New(cfg Config) *IndicatorGatherer {
	isIndex := cfg.IsIndex
	if isIndex == nil {
		isIndex = func(string) bool { return false }
	}
	return &IndicatorGatherer{
		symbols:  cfg.Symbols,
		isIndex:  isIndex,
		roster:   cfg.Roster,
		source:   cfg.Source,
		cache:    cfg.Cache,
		cal:      cfg.Calendar,
		renderer: cfg.Renderer,
		log:      cfg.Log.With("component", "gather-ths"),
	}
}

// Name returns the gatherer identifier.
func (g *IndicatorGatherer) Name() string { return "ths-indicator" }

// Run executes one update pass: refresh the roster, then update caches and
// export scripts symbol by symbol. It returns early only on context
// cancellation.
func (g *IndicatorGatherer) Run(ctx context.Context) error {
	if err := g.refreshRoster(ctx); err != nil {
		return err
	}

	for i, symbol := range g.symbols {
		if err := ctx.Err(); err != nil {
			return err
		}

		g.log.Info("updating symbol", "n", i+1, "of", len(g.symbols), "symbol", symbol)
		if err := g.updateSymbol(ctx, symbol); err != nil {
			g.log.Error("symbol update failed", "symbol", symbol, "err", err)
		}
	}
	return nil
}

// refreshRoster pulls the current market listing and upserts it. When the
// listing is unavailable an already-populated roster is good enough to
// continue on.
func (g *IndicatorGatherer) refreshRoster(ctx context.Context) error {
	metas, err := g.source.AllInfos(ctx)
	if err == nil && len(metas) > 0 {
		if err := g.roster.SaveSymbols(ctx, metas); err != nil {
			return err
		}
		g.log.Info("roster refreshed", "symbols", len(metas))
		return nil
	}

	count, cerr := g.roster.Count(ctx)
	if cerr != nil {
		return cerr
	}
	if count == 0 {
		return fmt.Errorf("market roster is empty and the listing endpoint returned nothing")
	}
	g.log.Warn("market listing unavailable, using cached roster", "symbols", count)
	return nil
}

// updateSymbol brings one symbol's caches up to date and rewrites its script
// families.
func (g *IndicatorGatherer) updateSymbol(ctx context.Context, symbol string) error {
	meta, err := g.roster.Symbol(ctx, symbol)
	if err != nil {
		return err
	}
	if meta == nil {
		return fmt.Errorf("symbol not present in the market roster: %s", symbol)
	}

	rows, err := g.cache.EnsureDaily(ctx, *meta)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		g.log.Warn("no daily rows for symbol, skipping export", "symbol", symbol)
		return nil
	}

	isIndex := g.isIndex(symbol) || meta.SecType == domain.SecTypeIndex
	if err := g.renderer.WriteAll(*meta, rows, isIndex); err != nil {
		return err
	}

	if symbol == overlaySymbol {
		return g.exportOverlay(ctx, *meta, rows)
	}
	return nil
}

// exportOverlay writes the market volume overlay script from the symbol's
// daily rows plus its most recent sessions of minute bars.
func (g *IndicatorGatherer) exportOverlay(ctx context.Context, meta domain.SymbolMeta, rows []domain.DailyRow) error {
	bars, err := g.cache.EnsureMinuteBars(ctx, meta)
	if err != nil {
		return err
	}

	recent := g.cal.LastSessions(overlaySessions, rows[len(rows)-1].Date)
	if len(recent) > 0 {
		cut := recent[0]
		i := 0
		for i < len(bars) && bars[i].Timestamp.Before(cut) {
			i++
		}
		bars = bars[i:]
	}
	return g.renderer.WriteIndexVolume(meta, rows, bars)
}

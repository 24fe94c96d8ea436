// Package calendar provides the exchange trading calendar: which dates are
// sessions, session windows for lookback ranges, and the freshness boundary
// that decides whether a cache still covers everything it should.
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"goldenbar/internal/domain"
	"goldenbar/internal/store"
)

// firstYear is the earliest calendar year ever requested from the source.
const firstYear = 2005

// Source supplies the classified calendar from the remote quote service.
type Source interface {
	// DatesByYear returns every calendar day from startYear through endYear
	// inclusive, each flagged as trading or not, ascending.
	DatesByYear(ctx context.Context, startYear, endYear int) ([]domain.CalendarDay, error)
}

// Inclusion selects which endpoints of a date range are part of the result.
type Inclusion int

const (
	IncludeBoth Inclusion = iota
	IncludeLeft
	IncludeRight
	IncludeNeither
)

// Calendar answers trading-day queries from a locally cached classified
// calendar, refetching the whole calendar when the cache no longer reaches
// the current year.
type Calendar struct {
	store  store.CalendarStore
	source Source
	log    *slog.Logger
	now    func() time.Time

	days     []domain.CalendarDay // ascending
	sessions []time.Time          // trading days only, ascending, midnight CST
	trading  map[string]bool
}

// New creates a Calendar backed by the given cache store and remote source.
// Load must be called before queries.
func New(st store.CalendarStore, src Source, log *slog.Logger) *Calendar {
	return &Calendar{
		store:  st,
		source: src,
		log:    log.With("component", "calendar"),
		now:    time.Now,
	}
}

// SetClock overrides the time source used for the staleness check.
func (c *Calendar) SetClock(now func() time.Time) { c.now = now }

// Load reads the cached calendar, refetching and rewriting it when the cache
// is missing or its last recorded year is behind the current year.
func (c *Calendar) Load(ctx context.Context) error {
	days, err := c.store.ReadCalendar(ctx)
	if err != nil {
		return fmt.Errorf("reading calendar cache: %w", err)
	}

	currentYear := c.now().In(domain.CST).Year()
	if len(days) == 0 || days[len(days)-1].Date.Year() < currentYear {
		c.log.Info("calendar cache stale, refetching",
			"cached_days", len(days), "through_year", currentYear)

		fetched, err := c.source.DatesByYear(ctx, firstYear, currentYear)
		if err != nil {
			return fmt.Errorf("fetching calendar: %w", err)
		}
		if len(fetched) == 0 {
			return fmt.Errorf("calendar source returned no days for %d-%d", firstYear, currentYear)
		}
		if err := c.store.WriteCalendar(ctx, fetched); err != nil {
			return fmt.Errorf("writing calendar cache: %w", err)
		}
		days = fetched
	}

	c.index(days)
	return nil
}

// index rebuilds the query structures from an ascending day list.
func (c *Calendar) index(days []domain.CalendarDay) {
	c.days = days
	c.sessions = c.sessions[:0]
	c.trading = make(map[string]bool, len(days))
	for _, d := range days {
		day := midnight(d.Date)
		c.trading[dateKey(day)] = d.Trading
		if d.Trading {
			c.sessions = append(c.sessions, day)
		}
	}
}

// IsTradingDay reports whether the date (interpreted in CST) is a session.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	return c.trading[dateKey(date)]
}

// TradingDays returns the sessions between start and end ascending, with
// endpoint membership decided by the inclusion policy.
func (c *Calendar) TradingDays(start, end time.Time, incl Inclusion) []time.Time {
	return c.rangeDays(start, end, incl, true)
}

// NonTradingDays returns the non-session calendar days between start and end
// ascending, with endpoint membership decided by the inclusion policy.
func (c *Calendar) NonTradingDays(start, end time.Time, incl Inclusion) []time.Time {
	return c.rangeDays(start, end, incl, false)
}

func (c *Calendar) rangeDays(start, end time.Time, incl Inclusion, trading bool) []time.Time {
	lo, hi := midnight(start), midnight(end)

	var out []time.Time
	for _, d := range c.days {
		if d.Trading != trading {
			continue
		}
		day := midnight(d.Date)
		if day.Before(lo) || day.After(hi) {
			continue
		}
		if day.Equal(lo) && incl != IncludeBoth && incl != IncludeLeft {
			continue
		}
		if day.Equal(hi) && incl != IncludeBoth && incl != IncludeRight {
			continue
		}
		out = append(out, day)
	}
	return out
}

// LastSessions returns the last n sessions on or before asOf, ascending.
// Fewer than n are returned when the calendar does not reach back far enough.
func (c *Calendar) LastSessions(n int, asOf time.Time) []time.Time {
	cutoff := midnight(asOf)
	// First session strictly after the cutoff.
	i := sort.Search(len(c.sessions), func(i int) bool {
		return c.sessions[i].After(cutoff)
	})
	lo := i - n
	if lo < 0 {
		lo = 0
	}
	out := make([]time.Time, i-lo)
	copy(out, c.sessions[lo:i])
	return out
}

// PrevSession returns the last session strictly before the given date, or a
// zero time when none is known.
func (c *Calendar) PrevSession(date time.Time) time.Time {
	day := midnight(date)
	i := sort.Search(len(c.sessions), func(i int) bool {
		return !c.sessions[i].Before(day)
	})
	if i == 0 {
		return time.Time{}
	}
	return c.sessions[i-1]
}

// Boundary returns the most recent session whose data a fresh cache must
// contain, as seen at the given instant. On a trading day before the 15:00
// close that is the previous session; otherwise it is the latest session on
// or before today. With daily=false the returned time is the session's 15:00
// close instead of midnight, for comparison against minute-bar timestamps.
func (c *Calendar) Boundary(now time.Time, daily bool) time.Time {
	now = now.In(domain.CST)
	today := midnight(now)

	var session time.Time
	if c.IsTradingDay(today) && beforeClose(now) {
		session = c.PrevSession(today)
	} else if c.IsTradingDay(today) {
		session = today
	} else {
		session = c.PrevSession(today.AddDate(0, 0, 1))
	}
	if session.IsZero() {
		return session
	}
	if daily {
		return session
	}
	return session.Add(15 * time.Hour)
}

// MidSession reports whether the instant falls on a trading day before the
// 15:00 close.
func (c *Calendar) MidSession(now time.Time) bool {
	now = now.In(domain.CST)
	return c.IsTradingDay(midnight(now)) && beforeClose(now)
}

func beforeClose(t time.Time) bool {
	h, m, s := t.Clock()
	return h*3600+60*m+s < 15*3600
}

func midnight(t time.Time) time.Time {
	t = t.In(domain.CST)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, domain.CST)
}

func dateKey(t time.Time) string {
	return t.In(domain.CST).Format("2006-01-02")
}

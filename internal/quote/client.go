// Package quote adapts the remote quote service: trading calendar, symbol
// roster, historical bars, and daily valuations, all served as JSON record
// lists over GET. Transport failures, including a stalled read, are retried
// with a fixed backoff; whatever still fails after the retry budget collapses
// to an empty result with a debug log so one bad response never aborts a
// batch run.
package quote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"goldenbar/internal/domain"
	"goldenbar/internal/util"
)

const (
	connectTimeout = 10 * time.Second

	// Data timeouts scale with how heavy the endpoint is.
	metaTimeout    = 2 * connectTimeout // calendar, roster, valuations
	historyTimeout = 3 * connectTimeout

	retryAttempts = 5
	retryWait     = 3 * time.Second
)

// Client talks to the quote service. Every request gets up to attempts tries
// with its own data timeout, so a stalled read on one attempt never eats the
// rest of the retry budget.
type Client struct {
	http *resty.Client
	log  *slog.Logger

	attempts       int
	wait           time.Duration
	metaTimeout    time.Duration
	historyTimeout time.Duration
}

// NewClient creates a Client for the quote service at baseURL.
func NewClient(baseURL string, log *slog.Logger) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTransport(&http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			}),
		log:            log.With("component", "quote"),
		attempts:       retryAttempts,
		wait:           retryWait,
		metaTimeout:    metaTimeout,
		historyTimeout: historyTimeout,
	}
}

// envelope is the wire shape of every quote endpoint.
type envelope[T any] struct {
	Data []T `json:"data"`
}

// statusError marks a non-200 response. The server answered, so another
// attempt would get the same answer.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d", e.code)
}

// getRecords issues one GET and decodes the record list. Each attempt runs
// under its own timeout; transport failures are retried, rejections and a
// missing data key are not. Whatever ultimately fails yields an empty list.
func getRecords[T any](ctx context.Context, c *Client, timeout time.Duration, path string, params map[string]string) []T {
	transient := func(err error) bool {
		var se *statusError
		return !errors.As(err, &se)
	}

	var out envelope[T]
	err := util.Retry(ctx, c.attempts, c.wait, transient, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		resp, err := c.http.R().
			SetContext(attemptCtx).
			SetQueryParams(params).
			SetResult(&out).
			Get(path)
		if err != nil {
			return err
		}
		if resp.StatusCode() != http.StatusOK {
			return &statusError{code: resp.StatusCode()}
		}
		return nil
	})
	if err != nil {
		c.log.Debug("quote request failed", "path", path, "params", params, "err", err)
		return nil
	}
	if out.Data == nil {
		c.log.Debug("quote response missing data", "path", path, "params", params)
		return nil
	}
	return out.Data
}

// ---------------------------------------------------------------------------
// Calendar
// ---------------------------------------------------------------------------

type dateRecord struct {
	Date      string `json:"date"`
	TradeDate string `json:"trade_date"`
}

// DatesByYear returns the classified calendar from startYear through endYear
// inclusive, ascending. A day is a session when the service pairs it with a
// trade date.
func (c *Client) DatesByYear(ctx context.Context, startYear, endYear int) ([]domain.CalendarDay, error) {
	params := map[string]string{
		"syear": strconv.Itoa(startYear),
		"eyear": strconv.Itoa(endYear),
	}
	records := getRecords[dateRecord](ctx, c, c.metaTimeout, "/get_dates_by_year", params)

	days := make([]domain.CalendarDay, 0, len(records))
	for _, r := range records {
		d, err := time.ParseInLocation("2006-01-02", r.Date, domain.CST)
		if err != nil {
			c.log.Debug("skipping unparseable calendar date", "date", r.Date, "err", err)
			continue
		}
		days = append(days, domain.CalendarDay{Date: d, Trading: r.TradeDate != ""})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days, nil
}

// ---------------------------------------------------------------------------
// Roster
// ---------------------------------------------------------------------------

type infoRecord struct {
	Symbol       string `json:"symbol"`
	SecID        string `json:"sec_id"`
	SecName      string `json:"sec_name"`
	SecAbbr      string `json:"sec_abbr"`
	Exchange     string `json:"exchange"`
	SecType1     int    `json:"sec_type1"`
	SecType2     int    `json:"sec_type2"`
	ListedDate   string `json:"listed_date"`
	DelistedDate string `json:"delisted_date"`
}

// Infos returns the roster for one security class: "stock", "fund", or
// "index".
func (c *Client) Infos(ctx context.Context, sec string) ([]domain.SymbolMeta, error) {
	records := getRecords[infoRecord](ctx, c, c.metaTimeout, "/get_infos", map[string]string{"sec": sec})

	metas := make([]domain.SymbolMeta, 0, len(records))
	for _, r := range records {
		metas = append(metas, domain.SymbolMeta{
			Symbol:       r.Symbol,
			SecID:        r.SecID,
			Name:         r.SecName,
			Abbr:         r.SecAbbr,
			Exchange:     r.Exchange,
			SecType:      domain.SecType(r.SecType1),
			SecSubType:   r.SecType2,
			ListedDate:   parseDate(r.ListedDate),
			DelistedDate: parseDate(r.DelistedDate),
		})
	}
	return metas, nil
}

// AllInfos returns the merged stock, fund, and index rosters.
func (c *Client) AllInfos(ctx context.Context) ([]domain.SymbolMeta, error) {
	var metas []domain.SymbolMeta
	for _, sec := range []string{"stock", "fund", "index"} {
		part, err := c.Infos(ctx, sec)
		if err != nil {
			return nil, err
		}
		metas = append(metas, part...)
	}
	return metas, nil
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

type barRecord struct {
	Symbol string  `json:"symbol"`
	EOB    string  `json:"eob"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// History returns bars for one symbol at the given granularity within
// [sdate, edate], ascending.
func (c *Client) History(ctx context.Context, symbol string, tag domain.Granularity, sdate, edate time.Time) ([]domain.Bar, error) {
	params := map[string]string{
		"symbols": symbol,
		"tag":     string(tag),
		"sdate":   sdate.In(domain.CST).Format("2006-01-02"),
		"edate":   edate.In(domain.CST).Format("2006-01-02"),
	}
	records := getRecords[barRecord](ctx, c, c.historyTimeout, "/get_his", params)

	bars := make([]domain.Bar, 0, len(records))
	for _, r := range records {
		ts, err := parseEOB(r.EOB)
		if err != nil {
			c.log.Debug("skipping bar with unparseable eob", "symbol", symbol, "eob", r.EOB, "err", err)
			continue
		}
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: ts,
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

// MinuteHistoryByDays fetches minute bars for each trading day separately,
// at most maxInflight requests at a time, and returns the merged run
// ascending. Each day fetch carries the full retry budget; days that still
// yield nothing are skipped.
func (c *Client) MinuteHistoryByDays(ctx context.Context, symbol string, days []time.Time, maxInflight int) ([]domain.Bar, error) {
	if len(days) == 0 {
		return nil, nil
	}
	if maxInflight <= 0 {
		maxInflight = 50
	}

	perDay := make([][]domain.Bar, len(days))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInflight)

	for i, day := range days {
		i, day := i, day
		g.Go(func() error {
			bars, err := c.History(gctx, symbol, domain.GranularityMinute, day, day)
			if err != nil {
				return err
			}
			perDay[i] = bars
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []domain.Bar
	for _, bars := range perDay {
		merged = append(merged, bars...)
	}
	return merged, nil
}

// ---------------------------------------------------------------------------
// Valuation
// ---------------------------------------------------------------------------

type valuationRecord struct {
	TradeDate string  `json:"trade_date"`
	PETTM     float64 `json:"pe_ttm"`
	PELYR     float64 `json:"pe_lyr"`
	PBLYR     float64 `json:"pb_lyr"`
	PSTTM     float64 `json:"ps_ttm"`
}

// DailyValuation returns the symbol's daily valuation rows within
// [sdate, edate], ascending.
func (c *Client) DailyValuation(ctx context.Context, symbol string, sdate, edate time.Time) ([]domain.ValuationRow, error) {
	params := map[string]string{
		"symbol": symbol,
		"fields": "pe_ttm,pe_lyr,pb_lyr,ps_ttm",
		"sdate":  sdate.In(domain.CST).Format("2006-01-02"),
		"edate":  edate.In(domain.CST).Format("2006-01-02"),
	}
	records := getRecords[valuationRecord](ctx, c, c.metaTimeout, "/get_daily_valuation", params)

	rows := make([]domain.ValuationRow, 0, len(records))
	for _, r := range records {
		d := parseDate(r.TradeDate)
		if d.IsZero() {
			c.log.Debug("skipping valuation with unparseable date", "symbol", symbol, "trade_date", r.TradeDate)
			continue
		}
		rows = append(rows, domain.ValuationRow{
			Date:  d,
			PETTM: r.PETTM,
			PELYR: r.PELYR,
			PBLYR: r.PBLYR,
			PSTTM: r.PSTTM,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows, nil
}

// ---------------------------------------------------------------------------
// Parsing helpers
// ---------------------------------------------------------------------------

// parseEOB accepts the two timestamp shapes the service emits: RFC 3339 with
// offset, or a bare local datetime.
func parseEOB(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(domain.CST), nil
	}
	return time.ParseInLocation("2006-01-02 15:04:05", s, domain.CST)
}

// parseDate returns the zero time for anything that is not a plain date.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.ParseInLocation("2006-01-02", s, domain.CST); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.In(domain.CST)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, domain.CST)
	}
	return time.Time{}
}

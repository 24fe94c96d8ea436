// Package archive fetches historical bars from the static csv.xz file
// server. Object paths are fully deterministic from symbol, granularity tag,
// and period, so a range fetch is just a walk over year and month files.
package archive

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ulikunitz/xz"

	"goldenbar/internal/domain"
	"goldenbar/internal/util"
)

const fetchTimeout = 60 * time.Second

// Client downloads and decodes archive objects. Downloads are paced with a
// token bucket so the file server is never hammered.
type Client struct {
	http    *resty.Client
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewClient creates an archive Client for the file server at baseURL,
// allowing at most perMinute downloads per minute.
func NewClient(baseURL string, perMinute int, log *slog.Logger) *Client {
	return &Client{
		http:    resty.New().SetBaseURL(baseURL),
		limiter: util.NewRateLimiter(perMinute),
		log:     log.With("component", "archive"),
	}
}

// ---------------------------------------------------------------------------
// Object paths
// ---------------------------------------------------------------------------

// key groups objects by exchange and symbol prefix: "SHSE.601088" → "SH-60".
func key(symbol string) string {
	if len(symbol) < 7 {
		return symbol
	}
	return symbol[:2] + "-" + symbol[5:7]
}

// YearPath returns the object path for one symbol's full-year bar file.
func YearPath(symbol, tag string, year int) string {
	return fmt.Sprintf("/download/kbars-year/year-%d/year-%d--%s/kbars-%s--%s--%d-.csv.xz",
		year, year, key(symbol), tag, symbol, year)
}

// MonthPath returns the object path for one symbol's single-month bar file.
func MonthPath(symbol, tag string, year int, month time.Month) string {
	return fmt.Sprintf("/download/kbars-month/month-%d/month-%d-%02d--%s/kbars-%s--%s--%d-%02d-.csv.xz",
		year, year, month, key(symbol), tag, symbol, year, month)
}

// ---------------------------------------------------------------------------
// Fetching
// ---------------------------------------------------------------------------

// FetchRange returns the symbol's archived bars within [sdate, edate 15:00],
// ascending. The boundary years are covered by month files so only the
// needed months are transferred; interior years use the single year file.
// Missing objects contribute nothing.
func (c *Client) FetchRange(ctx context.Context, symbol, tag string, sdate, edate time.Time) ([]domain.Bar, error) {
	sdate = sdate.In(domain.CST)
	edate = edate.In(domain.CST)

	var paths []string
	for year := sdate.Year(); year <= edate.Year(); year++ {
		if year != sdate.Year() && year != edate.Year() {
			paths = append(paths, YearPath(symbol, tag, year))
			continue
		}
		from, to := time.January, time.December
		if year == sdate.Year() {
			from = sdate.Month()
		}
		if year == edate.Year() {
			to = edate.Month()
		}
		for m := from; m <= to; m++ {
			paths = append(paths, MonthPath(symbol, tag, year, m))
		}
	}

	lo := time.Date(sdate.Year(), sdate.Month(), sdate.Day(), 0, 0, 0, 0, domain.CST)
	hi := time.Date(edate.Year(), edate.Month(), edate.Day(), 15, 0, 0, 0, domain.CST)

	var bars []domain.Bar
	for _, path := range paths {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		for _, b := range c.fetchFile(ctx, path, symbol) {
			if !b.Timestamp.Before(lo) && !b.Timestamp.After(hi) {
				bars = append(bars, b)
			}
		}
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

// fetchFile downloads and decodes one archive object. Any failure (missing
// object included) yields no bars.
func (c *Client) fetchFile(ctx context.Context, path, symbol string) []domain.Bar {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(path)
	if err != nil {
		c.log.Debug("archive download failed", "path", path, "err", err)
		return nil
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		c.log.Debug("archive object unavailable", "path", path, "status", resp.StatusCode())
		return nil
	}

	xr, err := xz.NewReader(body)
	if err != nil {
		c.log.Debug("archive object not xz", "path", path, "err", err)
		return nil
	}

	r := csv.NewReader(xr)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		c.log.Debug("archive object not csv", "path", path, "err", err)
		return nil
	}
	if len(rows) > 0 {
		rows = rows[1:] // header
	}

	bars := make([]domain.Bar, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		ts, err := time.ParseInLocation("2006-01-02 15:04:05", row[0], domain.CST)
		if err != nil {
			continue
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
	return bars
}

package quote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"goldenbar/internal/domain"
	"goldenbar/internal/util"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, util.NewLogger("error", "text"))
}

func TestDatesByYear(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get_dates_by_year" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("syear"); got != "2025" {
			t.Errorf("syear = %q, want 2025", got)
		}
		if got := r.URL.Query().Get("eyear"); got != "2026" {
			t.Errorf("eyear = %q, want 2026", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[
			{"date":"2026-03-02","trade_date":"2026-03-02"},
			{"date":"2026-03-04","trade_date":""},
			{"date":"2026-03-03","trade_date":"2026-03-03"}
		]}`)
	}))

	days, err := c.DatesByYear(context.Background(), 2025, 2026)
	if err != nil {
		t.Fatalf("DatesByYear returned error: %v", err)
	}
	if len(days) != 3 {
		t.Fatalf("got %d days, want 3", len(days))
	}
	// Sorted ascending regardless of wire order.
	if !days[1].Date.Equal(time.Date(2026, 3, 3, 0, 0, 0, 0, domain.CST)) {
		t.Errorf("days[1] = %v, want 2026-03-03", days[1].Date)
	}
	if !days[0].Trading || !days[1].Trading || days[2].Trading {
		t.Errorf("trading flags wrong: %+v", days)
	}
}

func TestInfos(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("sec"); got != "stock" {
			t.Errorf("sec = %q, want stock", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{
			"symbol":"SHSE.601088","sec_id":"601088","sec_name":"中国神华",
			"sec_abbr":"ZGSH","exchange":"SHSE","sec_type1":1010,"sec_type2":101001,
			"listed_date":"2007-10-09","delisted_date":""
		}]}`)
	}))

	metas, err := c.Infos(context.Background(), "stock")
	if err != nil {
		t.Fatalf("Infos returned error: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("got %d metas, want 1", len(metas))
	}
	m := metas[0]
	if m.Symbol != "SHSE.601088" || !m.IsStock() || m.Abbr != "ZGSH" {
		t.Errorf("meta = %+v", m)
	}
	if !m.ListedDate.Equal(time.Date(2007, 10, 9, 0, 0, 0, 0, domain.CST)) {
		t.Errorf("ListedDate = %v, want 2007-10-09", m.ListedDate)
	}
	if !m.DelistedDate.IsZero() {
		t.Errorf("DelistedDate = %v, want zero", m.DelistedDate)
	}
}

func TestHistory(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("symbols") != "SHSE.601088" || q.Get("tag") != "1m" {
			t.Errorf("unexpected query: %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[
			{"symbol":"SHSE.601088","eob":"2026-03-02T09:32:00+08:00","open":38.6,"high":38.8,"low":38.5,"close":38.75,"volume":95000},
			{"symbol":"SHSE.601088","eob":"2026-03-02T09:31:00+08:00","open":38.5,"high":38.7,"low":38.4,"close":38.6,"volume":120000}
		]}`)
	}))

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, domain.CST)
	bars, err := c.History(context.Background(), "SHSE.601088", domain.GranularityMinute, day, day)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	// Ascending by timestamp.
	want := time.Date(2026, 3, 2, 9, 31, 0, 0, domain.CST)
	if !bars[0].Timestamp.Equal(want) {
		t.Errorf("bars[0].Timestamp = %v, want %v", bars[0].Timestamp, want)
	}
	if bars[1].Close != 38.75 {
		t.Errorf("bars[1].Close = %v, want 38.75", bars[1].Close)
	}
}

func TestEmptyOnHTTPError(t *testing.T) {
	var requests atomic.Int64
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	c.wait = 0

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, domain.CST)
	bars, err := c.History(context.Background(), "SHSE.601088", domain.GranularityMinute, day, day)
	if err != nil {
		t.Fatalf("History should swallow HTTP errors, got: %v", err)
	}
	if len(bars) != 0 {
		t.Errorf("got %d bars, want 0 on server error", len(bars))
	}
	// The server answered; repeating the request would not change that.
	if got := requests.Load(); got != 1 {
		t.Errorf("made %d requests, want 1 for a rejection", got)
	}
}

func TestTransientErrorRetried(t *testing.T) {
	var requests atomic.Int64
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) == 1 {
			// Drop the connection mid-request.
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				conn.Close()
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"symbol":"SHSE.601088","eob":"2026-03-02T09:31:00+08:00","close":10,"volume":100}]}`)
	}))
	c.wait = 0

	days := []time.Time{time.Date(2026, 3, 2, 0, 0, 0, 0, domain.CST)}
	bars, err := c.MinuteHistoryByDays(context.Background(), "SHSE.601088", days, 2)
	if err != nil {
		t.Fatalf("MinuteHistoryByDays returned error: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("got %d bars, want 1 after the retried day fetch", len(bars))
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("made %d requests, want 2 (failure then retry)", got)
	}
}

func TestStalledAttemptRetried(t *testing.T) {
	var requests atomic.Int64
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) == 1 {
			// First attempt stalls past the data timeout.
			time.Sleep(300 * time.Millisecond)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"date":"2026-03-02","trade_date":"2026-03-02"}]}`)
	}))
	c.wait = 0
	c.metaTimeout = 50 * time.Millisecond

	days, err := c.DatesByYear(context.Background(), 2026, 2026)
	if err != nil {
		t.Fatalf("DatesByYear returned error: %v", err)
	}
	if len(days) != 1 {
		t.Fatalf("got %d days, want 1 after the stalled attempt was retried", len(days))
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("made %d requests, want 2 (timeout then retry)", got)
	}
}

func TestRetryBudgetExhausted(t *testing.T) {
	var requests atomic.Int64
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	c.wait = 0

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, domain.CST)
	bars, err := c.History(context.Background(), "SHSE.601088", domain.GranularityMinute, day, day)
	if err != nil {
		t.Fatalf("History should swallow exhausted retries, got: %v", err)
	}
	if len(bars) != 0 {
		t.Errorf("got %d bars, want 0 when every attempt fails", len(bars))
	}
	if got := requests.Load(); got != retryAttempts {
		t.Errorf("made %d requests, want %d", got, retryAttempts)
	}
}

func TestEmptyOnMissingDataKey(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"error":"no such symbol"}`)
	}))

	rows, err := c.DailyValuation(context.Background(), "SHSE.999999",
		time.Date(2026, 3, 2, 0, 0, 0, 0, domain.CST),
		time.Date(2026, 3, 6, 0, 0, 0, 0, domain.CST))
	if err != nil {
		t.Fatalf("DailyValuation should swallow decode problems, got: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0 when the data key is missing", len(rows))
	}
}

func TestDailyValuation(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "SHSE.601088" {
			t.Errorf("symbol = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[
			{"trade_date":"2026-03-03","pe_ttm":8.34,"pe_lyr":8.6,"pb_lyr":1.12,"ps_ttm":2.31},
			{"trade_date":"2026-03-02","pe_ttm":8.21,"pe_lyr":8.5,"pb_lyr":1.1,"ps_ttm":2.3}
		]}`)
	}))

	rows, err := c.DailyValuation(context.Background(), "SHSE.601088",
		time.Date(2026, 3, 2, 0, 0, 0, 0, domain.CST),
		time.Date(2026, 3, 3, 0, 0, 0, 0, domain.CST))
	if err != nil {
		t.Fatalf("DailyValuation returned error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].PETTM != 8.21 || rows[1].PETTM != 8.34 {
		t.Errorf("rows not ascending by date: %+v", rows)
	}
}

func TestMinuteHistoryByDays(t *testing.T) {
	var requests atomic.Int64
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		sdate := r.URL.Query().Get("sdate")
		if sdate == "2026-03-04" {
			// Holiday: nothing to return.
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"data":[]}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":[{"symbol":"SHSE.601088","eob":"%sT09:31:00+08:00","close":10,"volume":100}]}`, sdate)
	}))

	days := []time.Time{
		time.Date(2026, 3, 2, 0, 0, 0, 0, domain.CST),
		time.Date(2026, 3, 3, 0, 0, 0, 0, domain.CST),
		time.Date(2026, 3, 4, 0, 0, 0, 0, domain.CST),
		time.Date(2026, 3, 5, 0, 0, 0, 0, domain.CST),
	}
	bars, err := c.MinuteHistoryByDays(context.Background(), "SHSE.601088", days, 2)
	if err != nil {
		t.Fatalf("MinuteHistoryByDays returned error: %v", err)
	}
	if got := requests.Load(); got != 4 {
		t.Errorf("made %d requests, want one per day (4)", got)
	}
	if len(bars) != 3 {
		t.Fatalf("got %d bars, want 3 (empty day skipped)", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			t.Errorf("bars not ascending at %d: %v then %v", i, bars[i-1].Timestamp, bars[i].Timestamp)
		}
	}
}

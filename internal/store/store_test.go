package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"goldenbar/internal/domain"
)

func cstTime(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, domain.CST)
}

func TestCSVStoreBarsRoundTrip(t *testing.T) {
	s := NewCSVStore(t.TempDir())
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "SHSE.601088", Timestamp: cstTime(2026, 3, 2, 9, 31), Open: 38.5, High: 38.7, Low: 38.4, Close: 38.6, Volume: 120000},
		{Symbol: "SHSE.601088", Timestamp: cstTime(2026, 3, 2, 9, 32), Open: 38.6, High: 38.8, Low: 38.5, Close: 38.75, Volume: 95000},
	}
	if err := s.WriteBars(ctx, "SHSE.601088", bars); err != nil {
		t.Fatalf("WriteBars returned error: %v", err)
	}

	got, err := s.ReadBars(ctx, "SHSE.601088")
	if err != nil {
		t.Fatalf("ReadBars returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if !got[0].Timestamp.Equal(bars[0].Timestamp) {
		t.Errorf("bar 0 timestamp = %v, want %v", got[0].Timestamp, bars[0].Timestamp)
	}
	if got[1].Close != 38.75 {
		t.Errorf("bar 1 close = %v, want 38.75", got[1].Close)
	}
	if got[1].Volume != 95000 {
		t.Errorf("bar 1 volume = %d, want 95000", got[1].Volume)
	}
}

func TestCSVStoreMissingFileIsEmpty(t *testing.T) {
	s := NewCSVStore(t.TempDir())
	ctx := context.Background()

	bars, err := s.ReadBars(ctx, "SHSE.600000")
	if err != nil {
		t.Fatalf("ReadBars on missing file returned error: %v", err)
	}
	if len(bars) != 0 {
		t.Errorf("ReadBars on missing file returned %d bars, want 0", len(bars))
	}

	days, err := s.ReadCalendar(ctx)
	if err != nil {
		t.Fatalf("ReadCalendar on missing file returned error: %v", err)
	}
	if len(days) != 0 {
		t.Errorf("ReadCalendar on missing file returned %d days, want 0", len(days))
	}
}

func TestCSVStoreWholeFileRewrite(t *testing.T) {
	s := NewCSVStore(t.TempDir())
	ctx := context.Background()

	first := []domain.Bar{
		{Symbol: "SZSE.000002", Timestamp: cstTime(2026, 3, 2, 9, 31), Close: 10, Volume: 1},
		{Symbol: "SZSE.000002", Timestamp: cstTime(2026, 3, 2, 9, 32), Close: 11, Volume: 2},
	}
	if err := s.WriteBars(ctx, "SZSE.000002", first); err != nil {
		t.Fatalf("WriteBars returned error: %v", err)
	}

	// A second write fully replaces the first.
	second := []domain.Bar{
		{Symbol: "SZSE.000002", Timestamp: cstTime(2026, 3, 3, 9, 31), Close: 12, Volume: 3},
	}
	if err := s.WriteBars(ctx, "SZSE.000002", second); err != nil {
		t.Fatalf("second WriteBars returned error: %v", err)
	}

	got, err := s.ReadBars(ctx, "SZSE.000002")
	if err != nil {
		t.Fatalf("ReadBars returned error: %v", err)
	}
	if len(got) != 1 || got[0].Close != 12 {
		t.Fatalf("ReadBars after rewrite = %+v, want single bar with close 12", got)
	}
}

func TestCSVStoreValuationsRoundTrip(t *testing.T) {
	s := NewCSVStore(t.TempDir())
	ctx := context.Background()

	vals := []domain.ValuationRow{
		{Date: cstTime(2026, 3, 2, 0, 0), PETTM: 8.21, PELYR: 8.5, PBLYR: 1.1, PSTTM: 2.3},
		{Date: cstTime(2026, 3, 3, 0, 0), PETTM: 8.34, PELYR: 8.6, PBLYR: 1.12, PSTTM: 2.31},
	}
	if err := s.WriteValuations(ctx, "SHSE.601088", vals); err != nil {
		t.Fatalf("WriteValuations returned error: %v", err)
	}

	got, err := s.ReadValuations(ctx, "SHSE.601088")
	if err != nil {
		t.Fatalf("ReadValuations returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadValuations returned %d rows, want 2", len(got))
	}
	if got[0].PETTM != 8.21 || got[1].PBLYR != 1.12 {
		t.Errorf("valuation values not preserved: %+v", got)
	}
}

func TestCSVStoreDailyRowsRoundTrip(t *testing.T) {
	s := NewCSVStore(t.TempDir())
	ctx := context.Background()

	rows := []domain.DailyRow{
		{
			Date: cstTime(2026, 3, 2, 0, 0),
			Open: 38.5, High: 39.1, Low: 38.2, Close: 38.9, Volume: 25000000,
			GoldenAvg: 38.72, Cost: 38.68, CostEarly: 38.6, CostLate: 38.75,
			V931: 420000, V932: 310000, V935: 1800000, V940: 1200000, V150: 900000,
			Up: 47.5, Down: 40.83, PE: 8.21,
		},
	}
	if err := s.WriteDailyRows(ctx, "SHSE.601088", rows); err != nil {
		t.Fatalf("WriteDailyRows returned error: %v", err)
	}

	got, err := s.ReadDailyRows(ctx, "SHSE.601088")
	if err != nil {
		t.Fatalf("ReadDailyRows returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ReadDailyRows returned %d rows, want 1", len(got))
	}
	if got[0] != rows[0] {
		t.Errorf("daily row round trip mismatch:\n got %+v\nwant %+v", got[0], rows[0])
	}
}

func TestCSVStoreCalendarRoundTrip(t *testing.T) {
	s := NewCSVStore(t.TempDir())
	ctx := context.Background()

	days := []domain.CalendarDay{
		{Date: cstTime(2026, 2, 27, 0, 0), Trading: true},
		{Date: cstTime(2026, 2, 28, 0, 0), Trading: false},
		{Date: cstTime(2026, 3, 2, 0, 0), Trading: true},
	}
	if err := s.WriteCalendar(ctx, days); err != nil {
		t.Fatalf("WriteCalendar returned error: %v", err)
	}

	got, err := s.ReadCalendar(ctx)
	if err != nil {
		t.Fatalf("ReadCalendar returned error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ReadCalendar returned %d days, want 3", len(got))
	}
	if !got[0].Trading || got[1].Trading || !got[2].Trading {
		t.Errorf("trading flags not preserved: %+v", got)
	}
}

func TestSQLiteRosterRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "roster.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore returned error: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	metas := []domain.SymbolMeta{
		{
			Symbol: "SHSE.601088", SecID: "601088", Name: "中国神华",
			Abbr: "ZGSH", Exchange: "SHSE",
			SecType: domain.SecTypeStock, SecSubType: 101001,
			ListedDate: cstTime(2007, 10, 9, 0, 0),
		},
		{
			Symbol: "SHSE.000001", SecID: "000001", Name: "上证指数",
			Abbr: "SZZS", Exchange: "SHSE",
			SecType: domain.SecTypeIndex, SecSubType: 107001,
			ListedDate: cstTime(1991, 7, 15, 0, 0),
		},
	}
	if err := s.SaveSymbols(ctx, metas); err != nil {
		t.Fatalf("SaveSymbols returned error: %v", err)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}

	m, err := s.Symbol(ctx, "SHSE.601088")
	if err != nil {
		t.Fatalf("Symbol returned error: %v", err)
	}
	if m == nil {
		t.Fatal("Symbol returned nil for existing row")
	}
	if m.Name != "中国神华" || !m.IsStock() {
		t.Errorf("Symbol row = %+v, want stock 中国神华", m)
	}
	if !m.ListedDate.Equal(cstTime(2007, 10, 9, 0, 0)) {
		t.Errorf("ListedDate = %v, want 2007-10-09", m.ListedDate)
	}
	if !m.DelistedDate.IsZero() {
		t.Errorf("DelistedDate = %v, want zero", m.DelistedDate)
	}

	missing, err := s.Symbol(ctx, "SHSE.999999")
	if err != nil {
		t.Fatalf("Symbol for missing row returned error: %v", err)
	}
	if missing != nil {
		t.Errorf("Symbol for missing row = %+v, want nil", missing)
	}
}

func TestSQLiteRosterUpsert(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "roster.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore returned error: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	meta := domain.SymbolMeta{Symbol: "SZSE.000002", Name: "old", SecType: domain.SecTypeStock}
	if err := s.SaveSymbols(ctx, []domain.SymbolMeta{meta}); err != nil {
		t.Fatalf("SaveSymbols returned error: %v", err)
	}

	meta.Name = "new"
	if err := s.SaveSymbols(ctx, []domain.SymbolMeta{meta}); err != nil {
		t.Fatalf("second SaveSymbols returned error: %v", err)
	}

	n, _ := s.Count(ctx)
	if n != 1 {
		t.Errorf("Count after upsert = %d, want 1", n)
	}
	m, _ := s.Symbol(ctx, "SZSE.000002")
	if m == nil || m.Name != "new" {
		t.Errorf("Symbol after upsert = %+v, want name 'new'", m)
	}
}

func TestMirrorStoreMergeDedup(t *testing.T) {
	s := NewMirrorStore(t.TempDir())
	ctx := context.Background()

	first := []domain.Bar{
		{Symbol: "SHSE.601088", Timestamp: cstTime(2026, 3, 2, 9, 31), Close: 38.6, Volume: 100},
		{Symbol: "SHSE.601088", Timestamp: cstTime(2026, 3, 2, 9, 32), Close: 38.7, Volume: 200},
	}
	if err := s.Mirror(ctx, first); err != nil {
		t.Fatalf("Mirror returned error: %v", err)
	}

	// Overlapping write: the 09:32 bar is revised, 09:33 is new.
	second := []domain.Bar{
		{Symbol: "SHSE.601088", Timestamp: cstTime(2026, 3, 2, 9, 32), Close: 38.75, Volume: 210},
		{Symbol: "SHSE.601088", Timestamp: cstTime(2026, 3, 2, 9, 33), Close: 38.8, Volume: 150},
	}
	if err := s.Mirror(ctx, second); err != nil {
		t.Fatalf("second Mirror returned error: %v", err)
	}

	got, err := s.ReadBars(ctx, "SHSE.601088", cstTime(2026, 3, 2, 9, 0), cstTime(2026, 3, 2, 15, 0))
	if err != nil {
		t.Fatalf("ReadBars returned error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ReadBars returned %d bars, want 3 after dedup", len(got))
	}
	if got[1].Close != 38.75 || got[1].Volume != 210 {
		t.Errorf("revised bar not preferred: %+v", got[1])
	}
	for i := 1; i < len(got); i++ {
		if !got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Errorf("bars not sorted by timestamp: %v then %v", got[i-1].Timestamp, got[i].Timestamp)
		}
	}
}

func TestMirrorStoreNilIsNoop(t *testing.T) {
	var s *MirrorStore
	ctx := context.Background()

	if err := s.Mirror(ctx, []domain.Bar{{Symbol: "SHSE.601088"}}); err != nil {
		t.Fatalf("nil Mirror returned error: %v", err)
	}
	bars, err := s.ReadBars(ctx, "SHSE.601088", cstTime(2026, 1, 1, 0, 0), cstTime(2026, 12, 31, 0, 0))
	if err != nil {
		t.Fatalf("nil ReadBars returned error: %v", err)
	}
	if bars != nil {
		t.Errorf("nil ReadBars = %v, want nil", bars)
	}
}

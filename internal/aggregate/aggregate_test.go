package aggregate

import (
	"math"
	"testing"
	"time"

	"goldenbar/internal/domain"
)

func bar(h, m int, o, hi, lo, c float64, v int64) domain.Bar {
	return domain.Bar{
		Symbol:    "SHSE.601088",
		Timestamp: time.Date(2026, 3, 2, h, m, 0, 0, domain.CST),
		Open:      o, High: hi, Low: lo, Close: c,
		Volume: v,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDailyHandComputed(t *testing.T) {
	bars := []domain.Bar{
		bar(9, 31, 10, 10.4, 9.8, 10.2, 100),   // golden 10.125
		bar(9, 32, 10.2, 10.5, 10.1, 10.4, 300), // golden 10.325
		bar(10, 30, 10.4, 10.6, 10.3, 10.5, 50), // golden 10.4625
		bar(15, 0, 10.5, 10.7, 10.2, 10.6, 250), // golden 10.5375
	}

	row := Daily(bars)

	if !row.Date.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, domain.CST)) {
		t.Errorf("Date = %v", row.Date)
	}
	if row.Open != 10 || row.Close != 10.6 || row.High != 10.7 || row.Low != 9.8 {
		t.Errorf("kbar rollup = O%v H%v L%v C%v", row.Open, row.High, row.Low, row.Close)
	}
	if row.Volume != 700 {
		t.Errorf("Volume = %d, want 700", row.Volume)
	}

	// (10.125*100 + 10.325*300 + 10.4625*50 + 10.5375*250) / 700
	if !almostEqual(row.GoldenAvg, 7267.5/700) {
		t.Errorf("GoldenAvg = %v, want %v", row.GoldenAvg, 7267.5/700)
	}

	// Mean threshold 175 keeps the 300- and 250-volume bars.
	wantCost := (10.325*300 + 10.5375*250) / 550
	if !almostEqual(row.Cost, wantCost) {
		t.Errorf("Cost = %v, want %v", row.Cost, wantCost)
	}
	if !almostEqual(row.CostEarly, 10.325) {
		t.Errorf("CostEarly = %v, want 10.325", row.CostEarly)
	}
	if !almostEqual(row.CostLate, 10.5375) {
		t.Errorf("CostLate = %v, want 10.5375", row.CostLate)
	}

	if row.V931 != 100 || row.V932 != 300 || row.V150 != 250 {
		t.Errorf("exact-minute volumes = %d/%d/%d, want 100/300/250", row.V931, row.V932, row.V150)
	}
	if row.V935 != 400 {
		t.Errorf("V935 = %d, want 400", row.V935)
	}
	if row.V940 != 0 {
		t.Errorf("V940 = %d, want 0 (no bars in window)", row.V940)
	}

	// Three consecutive closes above the previous open.
	if !almostEqual(row.Up, 3.0/240*100) {
		t.Errorf("Up = %v, want 1.25", row.Up)
	}
	if row.Down != 0 {
		t.Errorf("Down = %v, want 0", row.Down)
	}
}

func TestDailyEmptyRun(t *testing.T) {
	row := Daily(nil)
	if row != (domain.DailyRow{}) {
		t.Errorf("Daily(nil) = %+v, want zero row", row)
	}
}

func TestGoldenAvgZeroVolumeFallsBackToLastBar(t *testing.T) {
	bars := []domain.Bar{
		bar(9, 31, 10, 10.4, 9.8, 10.2, 0),
		bar(9, 32, 10.2, 10.5, 10.1, 10.4, 0),
	}
	row := Daily(bars)
	wantGolden := bars[1].GoldenPrice()
	if !almostEqual(row.GoldenAvg, wantGolden) {
		t.Errorf("GoldenAvg = %v, want last bar's golden price %v", row.GoldenAvg, wantGolden)
	}
	// The filtered set is empty too, so every cost price is the same fallback.
	if !almostEqual(row.Cost, wantGolden) || !almostEqual(row.CostEarly, wantGolden) || !almostEqual(row.CostLate, wantGolden) {
		t.Errorf("cost prices = %v/%v/%v, want all %v", row.Cost, row.CostEarly, row.CostLate, wantGolden)
	}
}

func TestVolumeThresholdPolicy(t *testing.T) {
	mk := func(n int) []domain.Bar {
		bars := make([]domain.Bar, n)
		for i := range bars {
			bars[i] = bar(9, 31, 10, 10, 10, 10, int64(i+1))
		}
		return bars
	}

	// 10 bars: mean of 1..10.
	if got := volumeThreshold(mk(10)); !almostEqual(got, 5.5) {
		t.Errorf("threshold for 10 bars = %v, want mean 5.5", got)
	}
	// 50 bars: median of 1..50.
	if got := volumeThreshold(mk(50)); !almostEqual(got, 25.5) {
		t.Errorf("threshold for 50 bars = %v, want median 25.5", got)
	}
	// 120 bars: twice the median of 1..120.
	if got := volumeThreshold(mk(120)); !almostEqual(got, 121) {
		t.Errorf("threshold for 120 bars = %v, want 2x median 121", got)
	}
}

func TestCostHalvesFallBackWhenUnsplit(t *testing.T) {
	// All filtered bars before 10:30: the split never happens, both halves
	// carry the overall value.
	bars := []domain.Bar{
		bar(9, 31, 10, 10, 10, 10, 100),
		bar(9, 32, 11, 11, 11, 11, 300),
		bar(9, 33, 12, 12, 12, 12, 200),
	}
	row := Daily(bars)
	if !almostEqual(row.CostEarly, row.Cost) || !almostEqual(row.CostLate, row.Cost) {
		t.Errorf("halves = %v/%v, want both equal to overall %v", row.CostEarly, row.CostLate, row.Cost)
	}
}

func TestWindowVolumeGatedOnSessionProgress(t *testing.T) {
	early := []domain.Bar{
		bar(9, 31, 10, 10, 10, 10, 100),
		bar(9, 35, 10, 10, 10, 10, 200),
	}
	if row := Daily(early); row.V935 != 0 {
		t.Errorf("V935 = %d, want 0 while the session sits at the window end", row.V935)
	}

	past := append(early, bar(9, 36, 10, 10, 10, 10, 50))
	row := Daily(past)
	if row.V935 != 300 {
		t.Errorf("V935 = %d, want 300 once a bar lies past 09:35", row.V935)
	}
	if row.V940 != 0 {
		t.Errorf("V940 = %d, want 0 while the session sits inside the window", row.V940)
	}
}

func TestRowsGroupsByDate(t *testing.T) {
	day1 := time.Date(2026, 3, 2, 9, 31, 0, 0, domain.CST)
	day2 := time.Date(2026, 3, 3, 9, 31, 0, 0, domain.CST)
	bars := []domain.Bar{
		{Symbol: "SHSE.601088", Timestamp: day1, Open: 10, High: 10, Low: 10, Close: 10, Volume: 100},
		{Symbol: "SHSE.601088", Timestamp: day1.Add(time.Minute), Open: 10, High: 10, Low: 10, Close: 10, Volume: 100},
		{Symbol: "SHSE.601088", Timestamp: day2, Open: 11, High: 11, Low: 11, Close: 11, Volume: 200},
	}

	rows := Rows(bars)
	if len(rows) != 2 {
		t.Fatalf("Rows returned %d rows, want 2", len(rows))
	}
	if !rows[0].Date.Before(rows[1].Date) {
		t.Error("rows not ascending by date")
	}
	if rows[0].Volume != 200 || rows[1].Volume != 200 {
		t.Errorf("row volumes = %d/%d, want 200/200", rows[0].Volume, rows[1].Volume)
	}
}

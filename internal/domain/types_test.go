package domain

import (
	"testing"
	"time"
)

func TestGoldenPrice(t *testing.T) {
	b := Bar{Open: 10, High: 12, Low: 8, Close: 11}
	// (4*11 + 2*10 + 12 + 8) / 8 = 84/8 = 10.5
	if got := b.GoldenPrice(); got != 10.5 {
		t.Errorf("GoldenPrice = %v, want 10.5", got)
	}
}

func TestSymbolMetaIsStock(t *testing.T) {
	stock := SymbolMeta{Symbol: "SHSE.601088", SecType: SecTypeStock}
	if !stock.IsStock() {
		t.Error("SecTypeStock should report IsStock")
	}
	index := SymbolMeta{Symbol: "SHSE.000001", SecType: SecTypeIndex}
	if index.IsStock() {
		t.Error("SecTypeIndex should not report IsStock")
	}
}

func TestZeroValues(t *testing.T) {
	bar := Bar{}
	if bar.Symbol != "" || !bar.Timestamp.IsZero() {
		t.Error("zero-value Bar should have empty symbol and zero timestamp")
	}

	row := DailyRow{}
	if row.Volume != 0 || row.GoldenAvg != 0 || row.Cost != 0 {
		t.Error("zero-value DailyRow should have zero metrics")
	}

	if GranularityMinute != "1m" || GranularityDaily != "1d" {
		t.Error("granularity tags have unexpected values")
	}

	ts := time.Date(2024, 4, 12, 9, 31, 0, 0, CST)
	if ts.Format("15:04:05") != "09:31:00" {
		t.Errorf("CST formatting mismatch: %s", ts.Format("15:04:05"))
	}
}

// Package aggregate derives one daily indicator row from a single session's
// run of minute bars: kbar rollup, volume-weighted golden average, filtered
// cost-basis prices, fixed-minute volume snapshots, and activity ratios.
package aggregate

import (
	"sort"
	"time"

	"goldenbar/internal/domain"
)

// nominalBars is the bar count of a full session, the denominator of the
// activity ratios.
const nominalBars = 240

// costSplit is the morning/rest boundary for the cost-basis halves,
// inclusive on the early side.
var costSplit = clockMinutes(10, 30)

// Daily derives the indicator row for one session from its minute bars. The
// bars must belong to a single trading date, ascending by time. An empty run
// yields a zero row.
func Daily(bars []domain.Bar) domain.DailyRow {
	if len(bars) == 0 {
		return domain.DailyRow{}
	}

	row := domain.DailyRow{Date: dateOf(bars[0].Timestamp)}

	// Kbar rollup.
	row.Open = bars[0].Open
	row.Close = bars[len(bars)-1].Close
	row.High = bars[0].High
	row.Low = bars[0].Low
	for _, b := range bars {
		if b.High > row.High {
			row.High = b.High
		}
		if b.Low < row.Low {
			row.Low = b.Low
		}
		row.Volume += b.Volume
	}

	row.GoldenAvg = goldenAverage(bars)
	row.Cost, row.CostEarly, row.CostLate = costBasis(bars)

	row.V931 = volumeAt(bars, clockMinutes(9, 31))
	row.V932 = volumeAt(bars, clockMinutes(9, 32))
	row.V150 = volumeAt(bars, clockMinutes(15, 0))
	row.V935 = windowVolume(bars, clockMinutes(9, 30), clockMinutes(9, 35))
	row.V940 = windowVolume(bars, clockMinutes(9, 36), clockMinutes(9, 40))

	row.Up, row.Down = activityRatios(bars)

	return row
}

// Rows groups a multi-day run of minute bars by trading date and derives one
// row per date, ascending.
func Rows(bars []domain.Bar) []domain.DailyRow {
	if len(bars) == 0 {
		return nil
	}

	byDate := make(map[time.Time][]domain.Bar)
	for _, b := range bars {
		d := dateOf(b.Timestamp)
		byDate[d] = append(byDate[d], b)
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rows := make([]domain.DailyRow, 0, len(dates))
	for _, d := range dates {
		rows = append(rows, Daily(byDate[d]))
	}
	return rows
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

// goldenAverage is the day's volume-weighted golden price. A zero-volume day
// falls back to the last bar's golden price verbatim.
func goldenAverage(bars []domain.Bar) float64 {
	var weighted float64
	var volume int64
	for _, b := range bars {
		weighted += b.GoldenPrice() * float64(b.Volume)
		volume += b.Volume
	}
	if volume == 0 {
		return bars[len(bars)-1].GoldenPrice()
	}
	return weighted / float64(volume)
}

// costBasis computes the overall, pre-10:30, and post-10:30 cost prices over
// the volume-filtered bars. The volume threshold is the mean for runs under
// 30 bars, the median under 90, and twice the median otherwise. Each half
// falls back to the overall value when it is empty or holds the entire
// filtered set.
func costBasis(bars []domain.Bar) (overall, early, late float64) {
	threshold := volumeThreshold(bars)

	var filtered []domain.Bar
	for _, b := range bars {
		if float64(b.Volume) > threshold {
			filtered = append(filtered, b)
		}
	}

	overall = bars[len(bars)-1].GoldenPrice()
	if len(filtered) > 0 {
		overall = weightedGolden(filtered)
	}
	early, late = overall, overall

	var pre, post []domain.Bar
	for _, b := range filtered {
		if minutesOf(b.Timestamp) <= costSplit {
			pre = append(pre, b)
		} else {
			post = append(post, b)
		}
	}
	if len(pre) > 0 && len(pre) < len(filtered) {
		early = weightedGolden(pre)
	}
	if len(post) > 0 && len(post) < len(filtered) {
		late = weightedGolden(post)
	}
	return overall, early, late
}

func volumeThreshold(bars []domain.Bar) float64 {
	vols := make([]float64, len(bars))
	var sum float64
	for i, b := range bars {
		vols[i] = float64(b.Volume)
		sum += vols[i]
	}
	switch {
	case len(vols) < 30:
		return sum / float64(len(vols))
	case len(vols) < 90:
		return median(vols)
	default:
		return median(vols) * 2
	}
}

func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func weightedGolden(bars []domain.Bar) float64 {
	var weighted float64
	var volume int64
	for _, b := range bars {
		weighted += b.GoldenPrice() * float64(b.Volume)
		volume += b.Volume
	}
	if volume == 0 {
		return bars[len(bars)-1].GoldenPrice()
	}
	return weighted / float64(volume)
}

// volumeAt returns the volume of the bar stamped exactly at the given
// wall-clock minute, or 0 when no such bar exists.
func volumeAt(bars []domain.Bar, minute int) int64 {
	for _, b := range bars {
		if minutesOf(b.Timestamp) == minute {
			return b.Volume
		}
	}
	return 0
}

// windowVolume sums the volumes of bars inside [from, to] by wall clock, but
// only once the day's last bar lies strictly past the window end; an
// incomplete window yields 0.
func windowVolume(bars []domain.Bar, from, to int) int64 {
	if minutesOf(bars[len(bars)-1].Timestamp) <= to {
		return 0
	}
	var sum int64
	for _, b := range bars {
		m := minutesOf(b.Timestamp)
		if m >= from && m <= to {
			sum += b.Volume
		}
	}
	return sum
}

// activityRatios counts bars whose close rose above (up) or fell below
// (down) the previous bar's open, each as a percentage of the nominal
// session bar count.
func activityRatios(bars []domain.Bar) (up, down float64) {
	var nUp, nDown int
	for i := 1; i < len(bars); i++ {
		switch {
		case bars[i].Close > bars[i-1].Open:
			nUp++
		case bars[i].Close < bars[i-1].Open:
			nDown++
		}
	}
	up = float64(nUp) / nominalBars * 100
	down = float64(nDown) / nominalBars * 100
	return up, down
}

// ---------------------------------------------------------------------------
// Time helpers
// ---------------------------------------------------------------------------

func dateOf(t time.Time) time.Time {
	t = t.In(domain.CST)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, domain.CST)
}

func minutesOf(t time.Time) int {
	t = t.In(domain.CST)
	return t.Hour()*60 + t.Minute()
}

func clockMinutes(h, m int) int {
	return h*60 + m
}

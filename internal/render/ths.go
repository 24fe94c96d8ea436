// Package render writes THS indicator script files: for each symbol a family
// of small Python scripts, each holding a generated barsdata table keyed by
// trading date followed by a fixed plotting body.
package render

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"goldenbar/internal/domain"
)

// mainChartDir is the subdirectory for scripts drawn on the main price chart.
const mainChartDir = "Main"

// Renderer writes the indicator script families for one symbol into a target
// directory tree.
type Renderer struct {
	dir string
	log *slog.Logger
}

// New creates a Renderer rooted at dir.
func New(dir string, log *slog.Logger) *Renderer {
	return &Renderer{
		dir: dir,
		log: log.With("component", "render"),
	}
}

// WriteAll writes every per-symbol script family from the daily rows: the
// head/tail volumes, the opening-window volumes with P/E, the rebased volume
// ratios, the up/down ratios, the cost spread, and the main-chart golden
// average. Index symbols skip the main-chart cost curves.
func (r *Renderer) WriteAll(meta domain.SymbolMeta, rows []domain.DailyRow, isIndex bool) error {
	type family struct {
		sub    string
		suffix string
		header string
		format func(domain.DailyRow) string
		script string
	}
	families := []family{
		{"", "1", "[v931,v932,v150]", headTailRow, scriptHeadTailVolume},
		{"", "5", "[v935,v940,pettm]", windowRow, scriptWindowVolume},
		{"", "r", "[v931,v932,v150]", ratioRow, scriptVolumeRatio},
		{"", "u", "[up,down]", upDownRow, scriptUpDown},
		{"", "f", "[cbj0,cbj1,cbj2]", costRow, scriptCostSpread},
		{mainChartDir, "p", "[PVJ,]", goldenRow, scriptGoldenAvg},
	}
	if !isIndex {
		families = append(families, family{mainChartDir, "c", "[cbj0,cbj1,cbj2]", costRow, scriptCostCurves})
	}

	for _, f := range families {
		var b strings.Builder
		preamble(&b, meta, f.header)
		for i := len(rows) - 1; i >= 0; i-- {
			b.WriteString(f.format(rows[i]))
		}
		b.WriteString("\n}\n\n")
		b.WriteString(f.script)

		if err := r.flush(f.sub, scriptName(meta.Abbr, f.suffix), b.String()); err != nil {
			return err
		}
	}
	return nil
}

// WriteIndexVolume writes the market-index overlay script: the daily kbar
// table plus a second map of recent minute bars, both newest first.
func (r *Renderer) WriteIndexVolume(meta domain.SymbolMeta, rows []domain.DailyRow, bars []domain.Bar) error {
	var b strings.Builder
	preamble(&b, meta, "[open,close,vol]")
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		fmt.Fprintf(&b, "\n\"%s\" : [%d,%d,%d],",
			dateKey(row.Date), int64(row.Open), int64(row.Close), row.Volume)
	}
	b.WriteString("\n}\n\n")

	b.WriteString("\nbars1m={")
	for i := len(bars) - 1; i >= 0; i-- {
		bar := bars[i]
		fmt.Fprintf(&b, "\n\"%s\" : [%d,%d,%d],",
			minuteKey(bar.Timestamp), int64(bar.Open), int64(bar.Close), bar.Volume)
	}
	b.WriteString("\n}\n\n")
	b.WriteString(scriptIndexVolume)

	return r.flush("", scriptName(meta.Abbr, "v"), b.String())
}

// flush writes one script file under the renderer's root, creating the
// subdirectory as needed.
func (r *Renderer) flush(sub, name, content string) error {
	dir := r.dir
	if sub != "" {
		dir = filepath.Join(dir, sub)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating script dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing script %s: %w", path, err)
	}
	r.log.Debug("wrote indicator script", "path", path)
	return nil
}

// ---------------------------------------------------------------------------
// Row formatting
// ---------------------------------------------------------------------------

func headTailRow(row domain.DailyRow) string {
	return fmt.Sprintf("\n\"%s\" : [%d,%d,%d],", dateKey(row.Date), row.V931, row.V932, row.V150)
}

func windowRow(row domain.DailyRow) string {
	return fmt.Sprintf("\n\"%s\" : [%d,%d,%s],", dateKey(row.Date), row.V935, row.V940, fnum(row.PE))
}

func ratioRow(row domain.DailyRow) string {
	return fmt.Sprintf("\n\"%s\" : [%s,%s,%s],", dateKey(row.Date),
		fnum(float64(row.V931)), fnum(float64(row.V932)), fnum(float64(row.V150)))
}

func upDownRow(row domain.DailyRow) string {
	return fmt.Sprintf("\n\"%s\" : [%s,%s],", dateKey(row.Date),
		fnum(math.Max(row.Up, 0)), fnum(math.Max(row.Down, 0)))
}

func costRow(row domain.DailyRow) string {
	return fmt.Sprintf("\n\"%s\" : [%s,%s,%s],", dateKey(row.Date),
		fnum(row.Cost), fnum(row.CostEarly), fnum(row.CostLate))
}

func goldenRow(row domain.DailyRow) string {
	return fmt.Sprintf("\n\"%s\" : [%s],", dateKey(row.Date), fnum(row.GoldenAvg))
}

// preamble writes the comment banner and opens the barsdata map.
func preamble(b *strings.Builder, meta domain.SymbolMeta, header string) {
	b.WriteString("\n# " + meta.Symbol + "-" + meta.Name)
	b.WriteString("\n# Common used params")
	b.WriteString("\n#  Data index: " + header)
	b.WriteString("\nbarsdata={")
}

// scriptName builds the file name from the last five characters of the
// symbol's pinyin abbreviation plus a one-letter family suffix.
func scriptName(abbr, suffix string) string {
	runes := []rune(abbr)
	if len(runes) > 5 {
		runes = runes[len(runes)-5:]
	}
	return string(runes) + suffix + ".py"
}

// fnum renders a value rounded to two decimals with trailing zeros trimmed.
func fnum(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func dateKey(t time.Time) string {
	return t.In(domain.CST).Format("20060102")
}

func minuteKey(t time.Time) string {
	return t.In(domain.CST).Format("20060102 15:04:05")
}

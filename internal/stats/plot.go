package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// Series represents a named data series for plotting.
type Series struct {
	Name   string
	Values []float64
}

const (
	defaultPlotHeight   = 10
	minPlotWidth        = 10
	axisLabelTop        = "max"
	axisLabelBottom     = "min"
	axisSeparator       = " │ "
	scaleNote           = "Scaled per series; see min/max below."
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
)

var seriesMarkers = []rune{'●', '◆', '▲', '■'}

var colorPalette = []string{
	"\x1b[36m", // cyan
	"\x1b[35m", // magenta
	"\x1b[33m", // yellow
	"\x1b[32m", // green
}

// PlotSeries renders a multi-line text plot for the provided series.
func PlotSeries(w io.Writer, title string, series []Series, width, height int) error {
	return PlotSeriesWithColor(w, title, series, width, height, false)
}

// PlotSeriesWithColor renders a text plot with optional forced color output.
// Each series is scaled to its own min/max so differently sized metrics
// share one chart.
func PlotSeriesWithColor(w io.Writer, title string, series []Series, width, height int, forceColor bool) error {
	series = filterSeries(series)
	if len(series) == 0 {
		return nil
	}
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width <= 0 {
		width = PlotWidthFor(terminalWidth())
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}

	// grid holds the index of the series drawn in each cell, -1 when empty.
	grid := make([][]int, height)
	for y := range grid {
		grid[y] = make([]int, width)
		for x := range grid[y] {
			grid[y][x] = -1
		}
	}
	type span struct{ lo, hi float64 }
	spans := make([]span, len(series))
	for si, s := range series {
		values := resampleSeries(s.Values, width)
		lo, hi := seriesMinMax(values)
		spans[si] = span{lo: lo, hi: hi}
		if math.Abs(hi-lo) < 1e-9 {
			lo--
			hi++
		}
		for x, v := range values {
			row := valueToRow(v, lo, hi, height)
			if grid[row][x] == -1 {
				grid[row][x] = si
			}
		}
	}

	useColor := shouldUseColor(w, forceColor)
	var b strings.Builder
	if title != "" {
		b.WriteString(title + "\n")
	}
	b.WriteString(scaleNote + "\n")
	for si, s := range series {
		fmt.Fprintf(&b, "%s: min=%.2f max=%.2f\n", s.Name, spans[si].lo, spans[si].hi)
	}
	labelWidth := runewidth.StringWidth(axisLabelTop)
	for y := 0; y < height; y++ {
		label := ""
		switch y {
		case 0:
			label = axisLabelTop
		case height - 1:
			label = axisLabelBottom
		}
		b.WriteString(runewidth.FillLeft(label, labelWidth) + axisSeparator)
		for x := 0; x < width; x++ {
			si := grid[y][x]
			if si < 0 {
				b.WriteByte(' ')
				continue
			}
			b.WriteString(colorize(string(seriesMarkers[si%len(seriesMarkers)]), si, useColor))
		}
		b.WriteByte('\n')
	}
	b.WriteString(renderLegend(series, useColor) + "\n\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	plotWidth := totalWidth - runewidth.StringWidth(axisLabelTop) - runewidth.StringWidth(axisSeparator)
	if plotWidth < minPlotWidth {
		plotWidth = minPlotWidth
	}
	return plotWidth
}

func filterSeries(series []Series) []Series {
	out := make([]Series, 0, len(series))
	for _, s := range series {
		if len(s.Values) == 0 {
			continue
		}
		out = append(out, s)
	}
	return out
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func colorize(s string, idx int, useColor bool) string {
	if !useColor {
		return s
	}
	return colorPalette[idx%len(colorPalette)] + s + colorReset
}

// resampleSeries averages buckets when shrinking and repeats the nearest
// value when stretching.
func resampleSeries(values []float64, width int) []float64 {
	if len(values) == 0 || width <= 0 {
		return nil
	}
	out := make([]float64, width)
	if len(values) >= width {
		for i := 0; i < width; i++ {
			start := i * len(values) / width
			end := (i + 1) * len(values) / width
			if end <= start {
				end = start + 1
			}
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
		return out
	}
	for i := range out {
		idx := 0
		if width > 1 {
			idx = int(math.Round(float64(i) * float64(len(values)-1) / float64(width-1)))
		}
		out[i] = values[idx]
	}
	return out
}

func valueToRow(v, minVal, maxVal float64, height int) int {
	if height <= 1 {
		return 0
	}
	pos := (v - minVal) / (maxVal - minVal)
	row := int(math.Round((1 - pos) * float64(height-1)))
	if row < 0 {
		row = 0
	}
	if row >= height {
		row = height - 1
	}
	return row
}

func renderLegend(series []Series, useColor bool) string {
	parts := make([]string, 0, len(series))
	for i, s := range series {
		label := fmt.Sprintf("%c %s", seriesMarkers[i%len(seriesMarkers)], s.Name)
		parts = append(parts, colorize(label, i, useColor))
	}
	return "Legend: " + strings.Join(parts, "  ")
}

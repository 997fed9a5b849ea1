package stats

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestPlotSeries(t *testing.T) {
	var buf bytes.Buffer
	err := PlotSeries(&buf, "Curves", []Series{
		{Name: "Score", Values: []float64{1, 4, 2, 6, 3}},
		{Name: "Match %", Values: []float64{50, 50, 75, 100}},
	}, 12, 5)
	if err != nil {
		t.Fatalf("PlotSeries failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Curves", "Scaled per series", "Score: min=1.00 max=6.00", "Legend:", "● Score", "◆ Match %"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no color codes when writing to a buffer")
	}
	rows := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, axisSeparator) {
			rows++
		}
	}
	if rows != 5 {
		t.Fatalf("expected 5 plot rows, got %d", rows)
	}
}

func TestPlotSeriesSkipsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := PlotSeries(&buf, "Empty", []Series{{Name: "A"}}, 10, 4); err != nil {
		t.Fatalf("PlotSeries failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestPlotSeriesForcedColor(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	var buf bytes.Buffer
	if err := PlotSeriesWithColor(&buf, "", []Series{{Name: "A", Values: []float64{1, 2}}}, 10, 3, true); err != nil {
		t.Fatalf("PlotSeriesWithColor failed: %v", err)
	}
	if !strings.Contains(buf.String(), colorReset) {
		t.Fatalf("expected color codes in output")
	}
}

func TestPlotWidthFor(t *testing.T) {
	axisWidth := runewidth.StringWidth(axisLabelTop) + runewidth.StringWidth(axisSeparator)
	if got := PlotWidthFor(80); got != 80-axisWidth {
		t.Fatalf("unexpected width %d", got)
	}
	if got := PlotWidthFor(0); got != minPlotWidth {
		t.Fatalf("expected min width %d, got %d", minPlotWidth, got)
	}
	if got := PlotWidthFor(5); got != minPlotWidth {
		t.Fatalf("expected min width %d, got %d", minPlotWidth, got)
	}
}

func TestResampleSeries(t *testing.T) {
	got := resampleSeries([]float64{1, 3, 5, 7}, 2)
	if len(got) != 2 || got[0] != 2 || got[1] != 6 {
		t.Fatalf("unexpected downsample %v", got)
	}
	got = resampleSeries([]float64{1, 2}, 4)
	if len(got) != 4 || got[0] != 1 || got[3] != 2 {
		t.Fatalf("unexpected upsample %v", got)
	}
}

// Package stats contains round statistics and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/verte-zerg/nbackt/internal/model"
)

const sparkChars = " .:-=+*#%@"

// MatchRate returns userMatches/actualMatches. ok is false when the round
// had no true matches, in which case the rate is undefined and 0 is returned.
func MatchRate(userMatches, actualMatches int) (rate float64, ok bool) {
	if actualMatches <= 0 {
		return 0, false
	}
	return float64(userMatches) / float64(actualMatches), true
}

// MaxScore is the score of a perfect round.
func MaxScore(actualMatches, nBack int) int {
	return actualMatches * nBack
}

// FormatMatchRate renders a rate as a percentage, or "n/a" when undefined.
func FormatMatchRate(userMatches, actualMatches int) string {
	rate, ok := MatchRate(userMatches, actualMatches)
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", rate*100)
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := seriesMinMax(values)
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// Summary aggregates a set of rounds.
type Summary struct {
	Rounds        int
	BestScore     int
	AvgScore      float64
	UserMatches   int
	ActualMatches int
}

// Summarize aggregates rounds for summary output.
func Summarize(rounds []model.RoundAggregate) Summary {
	var sum Summary
	if len(rounds) == 0 {
		return sum
	}
	sum.Rounds = len(rounds)
	sum.BestScore = rounds[0].Score
	total := 0
	for _, r := range rounds {
		total += r.Score
		if r.Score > sum.BestScore {
			sum.BestScore = r.Score
		}
		sum.UserMatches += r.UserMatches
		sum.ActualMatches += r.ActualMatches
	}
	sum.AvgScore = float64(total) / float64(len(rounds))
	return sum
}

// RenderSummary prints a summary for rounds.
func RenderSummary(w io.Writer, rounds []model.RoundAggregate, highscore int) error {
	if len(rounds) == 0 {
		_, err := fmt.Fprintln(w, "No rounds found.")
		return err
	}
	sum := Summarize(rounds)
	lines := []string{
		"Summary",
		fmt.Sprintf("Rounds: %d", sum.Rounds),
		fmt.Sprintf("Highscore: %d", highscore),
		fmt.Sprintf("Best score: %d", sum.BestScore),
		fmt.Sprintf("Avg score: %.2f", sum.AvgScore),
		fmt.Sprintf("Matches: %d of %d (%s)", sum.UserMatches, sum.ActualMatches, FormatMatchRate(sum.UserMatches, sum.ActualMatches)),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderCurves prints learning curves for score and match rate.
func RenderCurves(w io.Writer, rounds []model.RoundAggregate, window int) error {
	return RenderCurvesWithSize(w, rounds, window, 0, defaultPlotHeight, false)
}

// RenderCurvesWithSize prints learning curves sized to a given total width.
func RenderCurvesWithSize(w io.Writer, rounds []model.RoundAggregate, window, totalWidth, height int, useColor bool) error {
	if len(rounds) == 0 {
		return nil
	}
	scores := make([]float64, len(rounds))
	rates := make([]float64, 0, len(rounds))
	for i, r := range rounds {
		scores[i] = float64(r.Score)
		// Rounds without true matches have no rate; leave them out.
		if rate, ok := MatchRate(r.UserMatches, r.ActualMatches); ok {
			rates = append(rates, rate*100)
		}
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	return PlotSeriesWithColor(w, "Learning Curves", []Series{
		{Name: "Score", Values: MovingAverage(scores, window)},
		{Name: "Match %", Values: MovingAverage(rates, window)},
	}, width, height, useColor)
}

// RenderRoundTable prints the most recent rounds, newest first.
func RenderRoundTable(w io.Writer, rounds []model.RoundAggregate, limit int) error {
	if len(rounds) == 0 {
		_, err := fmt.Fprintln(w, "No rounds found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Recent Rounds"); err != nil {
		return err
	}
	headers, rows := RoundRows(rounds, limit)
	lines := formatTable(headers, rows, map[int]bool{2: true, 3: true, 4: true, 5: true})
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RoundRows builds table cells for rounds, newest first. limit <= 0 keeps all.
func RoundRows(rounds []model.RoundAggregate, limit int) ([]string, [][]string) {
	headers := []string{"Ended", "Mode", "N", "Score", "Matches", "Rate"}
	if limit <= 0 || limit > len(rounds) {
		limit = len(rounds)
	}
	rows := make([][]string, 0, limit)
	for i := len(rounds) - 1; i >= len(rounds)-limit; i-- {
		r := rounds[i]
		rows = append(rows, []string{
			r.EndedAt.Local().Format("2006-01-02 15:04"),
			r.Mode.Label(),
			fmt.Sprintf("%d", r.NBack),
			fmt.Sprintf("%d/%d", r.Score, MaxScore(r.ActualMatches, r.NBack)),
			fmt.Sprintf("%d/%d", r.UserMatches, r.ActualMatches),
			FormatMatchRate(r.UserMatches, r.ActualMatches),
		})
	}
	return headers, rows
}

// RenderModeTable prints per mode and n-back aggregates.
func RenderModeTable(w io.Writer, aggs []model.ModeAggregate) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No mode stats found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "By Mode"); err != nil {
		return err
	}
	headers, rows := ModeRows(aggs)
	lines := formatTable(headers, rows, map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true})
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// ModeRows builds table cells for mode aggregates.
func ModeRows(aggs []model.ModeAggregate) ([]string, [][]string) {
	headers := []string{"Mode", "N", "Rounds", "Best", "Avg", "Rate"}
	rows := make([][]string, 0, len(aggs))
	for _, agg := range aggs {
		avg := 0.0
		if agg.Rounds > 0 {
			avg = float64(agg.TotalScore) / float64(agg.Rounds)
		}
		rows = append(rows, []string{
			agg.Mode.Label(),
			fmt.Sprintf("%d", agg.NBack),
			fmt.Sprintf("%d", agg.Rounds),
			fmt.Sprintf("%d", agg.BestScore),
			fmt.Sprintf("%.1f", avg),
			FormatMatchRate(agg.UserMatches, agg.ActualMatches),
		})
	}
	return headers, rows
}

func seriesMinMax(values []float64) (float64, float64) {
	minVal := math.Inf(1)
	maxVal := math.Inf(-1)
	for _, v := range values {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.IsInf(minVal, 1) {
		minVal = 0
	}
	if math.IsInf(maxVal, -1) {
		maxVal = 0
	}
	return minVal, maxVal
}

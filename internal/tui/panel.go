package tui

import (
	"fmt"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/nbackt/internal/session"
	"github.com/verte-zerg/nbackt/internal/stats"
)

// resultLines describes a finished round. previousHighscore is the
// highscore held when the round started.
func resultLines(st session.State, previousHighscore int) []string {
	maxScore := stats.MaxScore(st.ActualMatches, st.Config.NBack)
	lines := []string{
		"Round finished",
		"",
		fmt.Sprintf("Score %d out of %d", st.Score, maxScore),
		fmt.Sprintf("Matches %d out of %d", st.UserMatches, st.ActualMatches),
	}
	if rate, ok := stats.MatchRate(st.UserMatches, st.ActualMatches); ok {
		lines = append(lines, fmt.Sprintf("Match rate %.1f%%", rate*100))
	} else {
		lines = append(lines, "No matches were possible this round")
	}
	if st.Score > previousHighscore {
		lines = append(lines, "", "New highscore!")
	}
	return lines
}

// centerLines pads each line so the block is centered on its widest line.
func centerLines(lines []string) []string {
	width := 0
	for _, line := range lines {
		if w := runewidth.StringWidth(line); w > width {
			width = w
		}
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		pad := (width - runewidth.StringWidth(line)) / 2
		out[i] = runewidth.FillRight(runewidth.FillLeft(line, runewidth.StringWidth(line)+pad), width)
	}
	return out
}

package stats

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/nbackt/internal/model"
	"github.com/verte-zerg/nbackt/internal/store"
)

func TestBuildReport(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "nbackt.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	var ids []int64
	modes := []model.Mode{model.ModeVisual, model.ModeAudio, model.ModeVisual}
	for i, mode := range modes {
		start := time.Unix(0, 0).Add(time.Duration(i) * time.Minute)
		id, err := st.InsertRound(ctx, model.RoundStats{
			RoundID:       "round",
			StartedAt:     start,
			EndedAt:       start.Add(20 * time.Second),
			Mode:          mode,
			NBack:         2,
			Length:        10,
			Alphabet:      9,
			IntervalMs:    2000,
			Score:         i * 2,
			UserMatches:   i,
			ActualMatches: 2,
			Presses:       i,
		})
		if err != nil {
			t.Fatalf("insert round: %v", err)
		}
		ids = append(ids, id)
	}
	if err := st.SaveHighscore(ctx, 4); err != nil {
		t.Fatalf("save highscore: %v", err)
	}

	report, err := BuildReport(ctx, st, model.StatsConfig{Last: 2, CurveWindow: 2})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(report.Rounds))
	}
	if report.Rounds[0].ID != ids[1] || report.Rounds[1].ID != ids[2] {
		t.Fatalf("unexpected round ids: %+v", report.Rounds)
	}
	if len(report.ByMode) != 2 {
		t.Fatalf("expected 2 mode aggregates, got %+v", report.ByMode)
	}
	if report.Highscore != 4 {
		t.Fatalf("expected highscore 4, got %d", report.Highscore)
	}

	filtered, err := BuildReport(ctx, st, model.StatsConfig{Mode: model.ModeVisual})
	if err != nil {
		t.Fatalf("build filtered report: %v", err)
	}
	if len(filtered.Rounds) != 2 || len(filtered.ByMode) != 1 {
		t.Fatalf("unexpected filtered report: %+v", filtered)
	}
	if filtered.ByMode[0].BestScore != 4 || filtered.ByMode[0].TotalScore != 4 {
		t.Fatalf("unexpected visual aggregate: %+v", filtered.ByMode[0])
	}

	var buf bytes.Buffer
	if err := RenderReport(&buf, report, 2); err != nil {
		t.Fatalf("render report: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Summary", "Highscore: 4", "By Mode", "Recent Rounds", "Learning Curves"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in report:\n%s", want, out)
		}
	}
}

func TestRenderReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderReport(&buf, Report{}, 5); err != nil {
		t.Fatalf("render report: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "No rounds found." {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

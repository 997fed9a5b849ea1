package stats

import (
	"context"
	"io"

	"github.com/verte-zerg/nbackt/internal/model"
	"github.com/verte-zerg/nbackt/internal/store"
)

// Report contains precomputed data for stats rendering.
type Report struct {
	Rounds    []model.RoundAggregate
	ByMode    []model.ModeAggregate
	Highscore int
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, st *store.Store, cfg model.StatsConfig) (Report, error) {
	rounds, err := st.ListRounds(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	if cfg.Last > 0 && len(rounds) > cfg.Last {
		rounds = rounds[len(rounds)-cfg.Last:]
	}
	byMode, err := st.ListModeAggregates(ctx, roundIDs(rounds))
	if err != nil {
		return Report{}, err
	}
	highscore, err := st.Highscore(ctx)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Rounds:    rounds,
		ByMode:    byMode,
		Highscore: highscore,
	}, nil
}

// RenderReport writes the full plain-text report.
func RenderReport(w io.Writer, report Report, window int) error {
	if err := RenderSummary(w, report.Rounds, report.Highscore); err != nil {
		return err
	}
	if len(report.Rounds) == 0 {
		return nil
	}
	if err := RenderModeTable(w, report.ByMode); err != nil {
		return err
	}
	if err := RenderRoundTable(w, report.Rounds, 20); err != nil {
		return err
	}
	return RenderCurves(w, report.Rounds, window)
}

func roundIDs(rounds []model.RoundAggregate) []int64 {
	ids := make([]int64, len(rounds))
	for i, r := range rounds {
		ids[i] = r.ID
	}
	return ids
}

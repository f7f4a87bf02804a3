package bootstrap

import (
	"context"
	"fmt"

	"github.com/cohortlab/cohort/internal/async"
	"github.com/cohortlab/cohort/internal/clfmetrics"
	"github.com/cohortlab/cohort/internal/resample"
)

// Aggregator applies a metric function to many resampled datasets in
// parallel. Iterations are stateless and independent; the first failure
// aborts the batch and is returned to the caller.
type Aggregator struct {
	pool   *async.Pool
	metric clfmetrics.Func
}

// NewAggregator creates an aggregator over the given scoped pool.
func NewAggregator(pool *async.Pool, metric clfmetrics.Func) *Aggregator {
	return &Aggregator{pool: pool, metric: metric}
}

// Scores computes the metric row for each resampled index set and stacks
// the rows into a score matrix. Rows land at their iteration index even
// though completion order is arbitrary.
func (a *Aggregator) Scores(ctx context.Context, targets, guesses []float64, groupBy []string, weighted bool, sets [][]int) (*ScoreMatrix, error) {
	rows, err := async.Map(ctx, a.pool, sets, func(ctx context.Context, _ int, idx []int) (clfmetrics.Row, error) {
		t := take(targets, idx)
		g := take(guesses, idx)
		var grp []string
		if groupBy != nil {
			grp = takeStr(groupBy, idx)
		}
		return a.metric(t, g, grp, weighted)
	})
	if err != nil {
		return nil, fmt.Errorf("score aggregation: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("score aggregation: no resampled sets")
	}

	m := &ScoreMatrix{Columns: rows[0].Names, Rows: make([][]float64, len(rows))}
	for i, row := range rows {
		if len(row.Values) != len(m.Columns) {
			return nil, fmt.Errorf("score aggregation: iteration %d returned %d metrics, want %d", i, len(row.Values), len(m.Columns))
		}
		m.Rows[i] = row.Values
	}
	return m, nil
}

// JackknifeResult pairs the leave-one-out score matrix with its column
// means, the inputs to the BCa acceleration constant.
type JackknifeResult struct {
	Scores *ScoreMatrix
	Means  []float64
}

// Jackknife computes the metric over every leave-one-out replicate. Rows
// are ordered by deleted index, which keeps replicate pairing reproducible.
func (a *Aggregator) Jackknife(ctx context.Context, targets, guesses []float64, groupBy []string, weighted bool) (*JackknifeResult, error) {
	sets := resample.Jackknife(len(targets))
	scores, err := a.Scores(ctx, targets, guesses, groupBy, weighted, sets)
	if err != nil {
		return nil, fmt.Errorf("jackknife: %w", err)
	}
	return &JackknifeResult{Scores: scores, Means: scores.ColumnMeans()}, nil
}

func take(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = v[j]
	}
	return out
}

func takeStr(v []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = v[j]
	}
	return out
}

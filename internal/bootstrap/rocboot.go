package bootstrap

import (
	"context"
	"fmt"

	"github.com/cohortlab/cohort/internal/async"
	"github.com/cohortlab/cohort/internal/clfmetrics"
	"github.com/cohortlab/cohort/internal/resample"
)

// ROCResampler produces bootstrapped ROC curves: one curve per independently
// seeded resample. Curves are returned unaggregated, in iteration order;
// pointwise averaging or banding is left to the consumer.
type ROCResampler struct {
	Iterations int
	Seed       int64
	Workers    int
}

// Curves computes the ROC curve for each bootstrap resample of the label and
// score vectors. sampleBy optionally stratifies the draws.
func (r *ROCResampler) Curves(ctx context.Context, targets, scores []float64, sampleBy []string) ([]clfmetrics.Curve, error) {
	if len(targets) != len(scores) {
		return nil, fmt.Errorf("roc resample: %d targets vs %d scores", len(targets), len(scores))
	}
	n := r.Iterations
	if n <= 0 {
		n = 1000
	}

	engine := resample.NewEngine(r.Seed)
	sets, err := engine.Bootstrap(n, len(targets), sampleBy, nil)
	if err != nil {
		return nil, fmt.Errorf("roc resample: %w", err)
	}

	pool := async.NewPool(async.PoolConfig{Workers: r.Workers})
	curves, err := async.Map(ctx, pool, sets, func(_ context.Context, _ int, idx []int) (clfmetrics.Curve, error) {
		return clfmetrics.ROC(take(targets, idx), take(scores, idx))
	})
	if err != nil {
		return nil, fmt.Errorf("roc resample: %w", err)
	}
	return curves, nil
}

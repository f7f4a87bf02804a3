// Package bootstrap estimates confidence intervals for classifier metrics
// by resampling: a worker pool applies a metric function to many bootstrap
// replicates, and interval bounds are derived from the resulting score
// matrix by the percentile, difference, or BCa method.
package bootstrap

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ScoreMatrix holds one metric row per resampled iteration. Row order
// carries no meaning downstream; percentile computation is order-free.
type ScoreMatrix struct {
	Columns []string
	Rows    [][]float64
}

// Column returns the values of metric column j across all iterations.
func (m *ScoreMatrix) Column(j int) []float64 {
	out := make([]float64, len(m.Rows))
	for i, row := range m.Rows {
		out[i] = row[j]
	}
	return out
}

// ColumnMeans returns the NaN-skipping mean of every metric column.
func (m *ScoreMatrix) ColumnMeans() []float64 {
	means := make([]float64, len(m.Columns))
	for j := range m.Columns {
		vals := dropNaN(m.Column(j))
		if len(vals) > 0 {
			means[j] = stat.Mean(vals, nil)
		} else {
			means[j] = math.NaN()
		}
	}
	return means
}

// Interpolation selects how non-integer percentile ranks are resolved.
type Interpolation string

const (
	InterpNearest Interpolation = "nearest"
	InterpLower   Interpolation = "lower"
	InterpHigher  Interpolation = "higher"
	InterpLinear  Interpolation = "linear"
)

// ParseInterpolation validates an interpolation policy name.
func ParseInterpolation(s string) (Interpolation, error) {
	switch Interpolation(s) {
	case InterpNearest, InterpLower, InterpHigher, InterpLinear:
		return Interpolation(s), nil
	}
	return "", fmt.Errorf("unknown interpolation %q (want nearest, lower, higher, or linear)", s)
}

// percentile computes the empirical q-th percentile (q in [0,100]) of vals,
// skipping NaNs. Returns NaN when no finite values remain.
func percentile(vals []float64, q float64, interp Interpolation) float64 {
	if math.IsNaN(q) {
		return math.NaN()
	}
	clean := dropNaN(vals)
	if len(clean) == 0 {
		return math.NaN()
	}
	sort.Float64s(clean)
	if q <= 0 {
		return clean[0]
	}
	if q >= 100 {
		return clean[len(clean)-1]
	}

	pos := q / 100 * float64(len(clean)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	switch interp {
	case InterpLower:
		return clean[lo]
	case InterpHigher:
		return clean[hi]
	case InterpLinear:
		frac := pos - float64(lo)
		return clean[lo] + frac*(clean[hi]-clean[lo])
	default: // nearest
		return clean[int(math.Round(pos))]
	}
}

func dropNaN(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

package bootstrap

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cohortlab/cohort/internal/clfmetrics"
)

// Method selects how interval bounds are derived from the score matrix.
type Method string

const (
	MethodPercentile Method = "pct"
	MethodDifference Method = "diff"
	MethodBCa        Method = "bca"
)

// ParseMethod validates a CI method name. Unknown names are a configuration
// error and are rejected outright rather than defaulted.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodPercentile, MethodDifference, MethodBCa:
		return Method(s), nil
	}
	return "", fmt.Errorf("unknown CI method %q (want pct, diff, or bca)", s)
}

// Interval is the confidence interval for one metric. Immutable once
// computed. Lower <= Stat <= Upper holds in the typical case but is not
// enforced: skewed bootstrap distributions can violate it.
type Interval struct {
	Metric string  `json:"metric"`
	Stat   float64 `json:"stat"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
}

// Estimator derives confidence intervals from a bootstrap score matrix.
type Estimator struct {
	Alpha         float64
	Method        Method
	Interpolation Interpolation
}

// accelEpsilon replaces an exactly-zero denominator in the acceleration
// constant. A stability tradeoff, not a correctness guarantee.
const accelEpsilon = 1e-6

// Intervals computes one interval per metric column. The jackknife result
// is required for the BCa method and ignored otherwise.
func (e *Estimator) Intervals(point clfmetrics.Row, scores *ScoreMatrix, jack *JackknifeResult) ([]Interval, error) {
	if e.Alpha <= 0 || e.Alpha >= 1 {
		return nil, fmt.Errorf("intervals: alpha %v out of (0, 1)", e.Alpha)
	}
	if len(point.Names) != len(scores.Columns) {
		return nil, fmt.Errorf("intervals: point estimate has %d metrics, score matrix %d", len(point.Names), len(scores.Columns))
	}

	lowerQ := e.Alpha / 2 * 100
	upperQ := 100 - lowerQ

	out := make([]Interval, len(scores.Columns))
	for j, name := range scores.Columns {
		col := scores.Column(j)
		stat := point.Values[j]
		iv := Interval{Metric: name, Stat: stat}

		switch e.Method {
		case MethodPercentile:
			iv.Lower = percentile(col, lowerQ, e.Interpolation)
			iv.Upper = percentile(col, upperQ, e.Interpolation)

		case MethodDifference:
			diffs := make([]float64, len(col))
			for i, v := range col {
				diffs[i] = stat - v
			}
			iv.Lower = stat + percentile(diffs, lowerQ, e.Interpolation)
			iv.Upper = stat + percentile(diffs, upperQ, e.Interpolation)

		case MethodBCa:
			if jack == nil {
				return nil, fmt.Errorf("intervals: BCa requires jackknife replicates")
			}
			if len(jack.Scores.Columns) != len(scores.Columns) || len(jack.Means) != len(scores.Columns) {
				return nil, fmt.Errorf("intervals: jackknife has %d metrics, score matrix %d", len(jack.Scores.Columns), len(scores.Columns))
			}
			lq, uq := bcaRanks(col, stat, jack.Scores.Column(j), jack.Means[j], e.Alpha)
			iv.Lower = percentile(col, lq, e.Interpolation)
			iv.Upper = percentile(col, uq, e.Interpolation)

		default:
			return nil, fmt.Errorf("unknown CI method %q (want pct, diff, or bca)", e.Method)
		}
		out[j] = iv
	}
	return out, nil
}

// bcaRanks computes the adjusted percentile rank pair for one metric.
func bcaRanks(col []float64, stat float64, jackCol []float64, jackMean, alpha float64) (lowerQ, upperQ float64) {
	norm := distuv.Normal{Mu: 0, Sigma: 1}

	// Bias correction: the normal quantile of the fraction of bootstrap
	// values below the observed statistic. Degenerate fractions would map
	// to +/-Inf, so they clamp to zero.
	var below int
	for _, v := range col {
		if v < stat {
			below++
		}
	}
	pBelow := float64(below) / float64(len(col))
	z0 := 0.0
	if pBelow > 0 && pBelow < 1 {
		z0 = norm.Quantile(pBelow)
	}

	// Acceleration from jackknife replicate deviations about their mean,
	// via the third-moment / second-moment ratio. NaN replicates are
	// skipped, matching the NaN handling of percentiles and column means.
	var sum2, sum3 float64
	for _, v := range jackCol {
		d := jackMean - v
		if math.IsNaN(d) {
			continue
		}
		sum2 += d * d
		sum3 += d * d * d
	}
	denom := 6 * math.Pow(sum2, 1.5)
	if denom == 0 {
		denom += accelEpsilon
	}
	accel := sum3 / denom

	zl := norm.Quantile(alpha / 2)
	zu := norm.Quantile(1 - alpha/2)
	lterm := (z0 + zl) / (1 - accel*(z0+zl))
	uterm := (z0 + zu) / (1 - accel*(z0+zu))
	return norm.CDF(z0+lterm) * 100, norm.CDF(z0+uterm) * 100
}

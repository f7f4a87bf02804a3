// Package clfmetrics computes point estimates for binary classifier
// performance. It provides the default metric function consumed by the
// bootstrap aggregator: deterministic, one named-value row per call.
package clfmetrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Row is one set of named metric values with a stable column order.
type Row struct {
	Names  []string
	Values []float64
}

// Get returns the value for a metric name.
func (r Row) Get(name string) (float64, bool) {
	for i, n := range r.Names {
		if n == name {
			return r.Values[i], true
		}
	}
	return 0, false
}

// Func is the metric function contract: given true labels and predictions,
// optionally averaged over a grouping key, return one row of named metrics.
// Implementations must be deterministic in their inputs.
type Func func(targets, guesses []float64, groupBy []string, weighted bool) (Row, error)

// MetricNames is the column order produced by Binary.
var MetricNames = []string{
	"sens", "spec", "ppv", "npv", "f1", "acc", "mcc", "j", "brier",
}

// Binary computes scalar metrics for hard binary predictions. With a
// grouping key, metrics are computed per group and macro-averaged, weighted
// by group size when weighted is true.
func Binary(targets, guesses []float64, groupBy []string, weighted bool) (Row, error) {
	if len(targets) != len(guesses) {
		return Row{}, fmt.Errorf("clf metrics: %d targets vs %d guesses", len(targets), len(guesses))
	}
	if len(targets) == 0 {
		return Row{}, fmt.Errorf("clf metrics: empty input")
	}
	if groupBy == nil {
		return scalarRow(targets, guesses), nil
	}
	if len(groupBy) != len(targets) {
		return Row{}, fmt.Errorf("clf metrics: grouping key has %d entries, want %d", len(groupBy), len(targets))
	}

	groups := make(map[string][]int)
	for i, g := range groupBy {
		groups[g] = append(groups[g], i)
	}

	acc := make([]float64, len(MetricNames))
	var totalWeight float64
	for _, idx := range groups {
		t := take(targets, idx)
		g := take(guesses, idx)
		row := scalarRow(t, g)
		w := 1.0
		if weighted {
			w = float64(len(idx))
		}
		floats.AddScaled(acc, w, row.Values)
		totalWeight += w
	}
	floats.Scale(1/totalWeight, acc)
	return Row{Names: MetricNames, Values: acc}, nil
}

func scalarRow(targets, guesses []float64) Row {
	var tp, fp, tn, fn float64
	var brier float64
	for i := range targets {
		d := guesses[i] - targets[i]
		brier += d * d
		switch {
		case targets[i] == 1 && guesses[i] >= 0.5:
			tp++
		case targets[i] == 1:
			fn++
		case guesses[i] >= 0.5:
			fp++
		default:
			tn++
		}
	}
	brier /= float64(len(targets))

	sens := safeDiv(tp, tp+fn)
	spec := safeDiv(tn, tn+fp)
	ppv := safeDiv(tp, tp+fp)
	npv := safeDiv(tn, tn+fn)
	f1 := safeDiv(2*ppv*sens, ppv+sens)
	acc := (tp + tn) / float64(len(targets))
	mcc := safeDiv(tp*tn-fp*fn,
		math.Sqrt((tp+fp)*(tp+fn)*(tn+fp)*(tn+fn)))
	j := sens + spec - 1

	return Row{
		Names:  MetricNames,
		Values: []float64{sens, spec, ppv, npv, f1, acc, mcc, j, brier},
	}
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func take(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = v[j]
	}
	return out
}

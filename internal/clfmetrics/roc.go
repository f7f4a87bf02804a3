package clfmetrics

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/integrate"
)

// Curve holds one ROC curve: parallel FPR/TPR points with the score
// threshold that produced each point, ordered by ascending FPR.
type Curve struct {
	FPR        []float64
	TPR        []float64
	Thresholds []float64
}

// AUC integrates the curve with the trapezoid rule.
func (c Curve) AUC() float64 {
	if len(c.FPR) < 2 {
		return 0
	}
	return integrate.Trapezoidal(c.FPR, c.TPR)
}

// ROC computes the ROC curve for binary targets against continuous scores.
// Thresholds are the distinct score values in descending order; the leading
// point is (0, 0) at a threshold above every score.
func ROC(targets, scores []float64) (Curve, error) {
	if len(targets) != len(scores) {
		return Curve{}, fmt.Errorf("roc: %d targets vs %d scores", len(targets), len(scores))
	}
	if len(targets) == 0 {
		return Curve{}, fmt.Errorf("roc: empty input")
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	var pos, neg float64
	for _, t := range targets {
		if t == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return Curve{}, fmt.Errorf("roc: need both classes, have %d positive of %d", int(pos), len(targets))
	}

	curve := Curve{
		FPR:        []float64{0},
		TPR:        []float64{0},
		Thresholds: []float64{scores[order[0]] + 1},
	}
	var tp, fp float64
	for k, i := range order {
		if targets[i] == 1 {
			tp++
		} else {
			fp++
		}
		// Emit a point only at the trailing edge of each distinct score.
		if k+1 < len(order) && scores[order[k+1]] == scores[i] {
			continue
		}
		curve.FPR = append(curve.FPR, fp/neg)
		curve.TPR = append(curve.TPR, tp/pos)
		curve.Thresholds = append(curve.Thresholds, scores[i])
	}
	return curve, nil
}

package clfmetrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinary_PerfectPrediction(t *testing.T) {
	targets := []float64{1, 0, 1, 1, 0}
	row, err := Binary(targets, targets, nil, false)
	require.NoError(t, err)
	require.Equal(t, MetricNames, row.Names)

	for _, name := range []string{"sens", "spec", "ppv", "npv", "f1", "acc", "mcc"} {
		v, ok := row.Get(name)
		require.True(t, ok)
		assert.InDelta(t, 1.0, v, 1e-12, name)
	}
	brier, _ := row.Get("brier")
	assert.Zero(t, brier)
}

func TestBinary_KnownConfusionMatrix(t *testing.T) {
	// tp=2, fn=1, fp=1, tn=1
	targets := []float64{1, 1, 1, 0, 0}
	guesses := []float64{1, 1, 0, 1, 0}
	row, err := Binary(targets, guesses, nil, false)
	require.NoError(t, err)

	sens, _ := row.Get("sens")
	spec, _ := row.Get("spec")
	ppv, _ := row.Get("ppv")
	acc, _ := row.Get("acc")
	j, _ := row.Get("j")

	assert.InDelta(t, 2.0/3.0, sens, 1e-12)
	assert.InDelta(t, 0.5, spec, 1e-12)
	assert.InDelta(t, 2.0/3.0, ppv, 1e-12)
	assert.InDelta(t, 0.6, acc, 1e-12)
	assert.InDelta(t, 2.0/3.0+0.5-1, j, 1e-12)
}

func TestBinary_GroupAveraged(t *testing.T) {
	// Group a is predicted perfectly, group b entirely wrong.
	targets := []float64{1, 0, 1, 0}
	guesses := []float64{1, 0, 0, 1}
	groups := []string{"a", "a", "b", "b"}

	row, err := Binary(targets, guesses, groups, false)
	require.NoError(t, err)
	acc, _ := row.Get("acc")
	assert.InDelta(t, 0.5, acc, 1e-12, "macro average of 1.0 and 0.0")

	weighted, err := Binary(targets, guesses, groups, true)
	require.NoError(t, err)
	wacc, _ := weighted.Get("acc")
	assert.InDelta(t, 0.5, wacc, 1e-12, "equal group sizes keep the same average")
}

func TestBinary_InputValidation(t *testing.T) {
	_, err := Binary([]float64{1}, []float64{1, 0}, nil, false)
	assert.Error(t, err)

	_, err = Binary(nil, nil, nil, false)
	assert.Error(t, err)

	_, err = Binary([]float64{1, 0}, []float64{1, 0}, []string{"a"}, false)
	assert.Error(t, err)
}

func TestROC_KnownCurve(t *testing.T) {
	targets := []float64{1, 1, 0, 0}
	scores := []float64{0.9, 0.6, 0.4, 0.1}

	curve, err := ROC(targets, scores)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0, 0, 0.5, 1}, curve.FPR)
	assert.Equal(t, []float64{0, 0.5, 1, 1, 1}, curve.TPR)
	assert.InDelta(t, 1.0, curve.AUC(), 1e-12, "separable scores give AUC 1")
}

func TestROC_TiedScoresCollapse(t *testing.T) {
	targets := []float64{1, 0, 1, 0}
	scores := []float64{0.5, 0.5, 0.5, 0.5}

	curve, err := ROC(targets, scores)
	require.NoError(t, err)
	// All scores tie: a single threshold point after the origin.
	require.Len(t, curve.FPR, 2)
	assert.Equal(t, 1.0, curve.FPR[1])
	assert.Equal(t, 1.0, curve.TPR[1])
	assert.InDelta(t, 0.5, curve.AUC(), 1e-12)
}

func TestROC_SingleClassRejected(t *testing.T) {
	_, err := ROC([]float64{1, 1}, []float64{0.2, 0.8})
	assert.Error(t, err)
}

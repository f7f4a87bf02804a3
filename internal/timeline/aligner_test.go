package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortlab/cohort/internal/feature"
	"github.com/cohortlab/cohort/internal/source"
)

func TestParseGranularity(t *testing.T) {
	for _, ok := range []string{"day", "hour", "minute"} {
		_, err := ParseGranularity(ok)
		assert.NoError(t, err, ok)
	}
	_, err := ParseGranularity("week")
	assert.Error(t, err)
}

func TestAlign_DayOffsetPassesThroughAtDayGranularity(t *testing.T) {
	visits := map[string]source.VisitInfo{"v1": {DaysFromIndex: 0}}
	aligner, err := NewAligner(visits, Day)
	require.NoError(t, err)

	tbl := &feature.TokenTable{
		Name:    "bill",
		VisitID: []string{"v1", "v1", "v1"},
		Token:   []string{"bill0", "bill1", "bill0"},
		Day:     []float64{0, 3, 7},
	}
	out, err := aligner.Align(tbl, false)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3, 7}, out.Time,
		"index offset 0, day granularity: timeline equals the record day offset")
}

func TestAlign_HourGranularityScalesDays(t *testing.T) {
	// Visit indexed at day 2, record on visit day 1: (2+1)*24 = 72 hours.
	visits := map[string]source.VisitInfo{"A": {DaysFromIndex: 2}}
	aligner, err := NewAligner(visits, Hour)
	require.NoError(t, err)

	tbl := &feature.TokenTable{
		Name:    "vitals",
		VisitID: []string{"A"},
		Token:   []string{"vtl0"},
		Day:     []float64{1},
	}
	out, err := aligner.Align(tbl, false)
	require.NoError(t, err)
	assert.Equal(t, []float64{72}, out.Time)
}

func TestAlign_TimeOfDayContribution(t *testing.T) {
	visits := map[string]source.VisitInfo{"v": {DaysFromIndex: 0}}
	aligner, err := NewAligner(visits, Hour)
	require.NoError(t, err)

	tbl := &feature.TokenTable{
		Name:      "vitals",
		VisitID:   []string{"v", "v"},
		Token:     []string{"vtl0", "vtl1"},
		Day:       []float64{0, 0},
		TimeOfDay: []string{"06:00:00", "18:30:00"},
	}
	out, err := aligner.Align(tbl, false)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, out.Time[0], 1e-9)
	assert.InDelta(t, 18.5, out.Time[1], 1e-9)
}

func TestAlign_EndOfVisitAnchoring(t *testing.T) {
	visits := map[string]source.VisitInfo{"v": {DaysFromIndex: 1, LengthOfStay: 4}}
	aligner, err := NewAligner(visits, Day)
	require.NoError(t, err)

	tbl := &feature.TokenTable{
		Name:    "diag",
		VisitID: []string{"v"},
		Token:   []string{"dx0"},
	}
	out, err := aligner.Align(tbl, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{5}, out.Time, "base offset plus length of stay")
}

func TestAlign_MissingColumnsDegradeGracefully(t *testing.T) {
	visits := map[string]source.VisitInfo{"v": {DaysFromIndex: 3}}
	aligner, err := NewAligner(visits, Minute)
	require.NoError(t, err)

	// No day or time columns at all: only the visit base offset remains.
	tbl := &feature.TokenTable{
		Name:    "diag",
		VisitID: []string{"v"},
		Token:   []string{"dx0"},
	}
	out, err := aligner.Align(tbl, false)
	require.NoError(t, err)
	assert.Equal(t, []float64{3 * 1440}, out.Time)
}

func TestAlign_UnknownVisitFails(t *testing.T) {
	aligner, err := NewAligner(map[string]source.VisitInfo{}, Day)
	require.NoError(t, err)

	tbl := &feature.TokenTable{Name: "x", VisitID: []string{"ghost"}, Token: []string{"t0"}}
	_, err = aligner.Align(tbl, false)
	assert.Error(t, err)
}

func TestAlign_MonotoneInChronology(t *testing.T) {
	visits := map[string]source.VisitInfo{"v": {DaysFromIndex: 1}}
	aligner, err := NewAligner(visits, Minute)
	require.NoError(t, err)

	tbl := &feature.TokenTable{
		Name:      "vitals",
		VisitID:   []string{"v", "v", "v"},
		Token:     []string{"a", "b", "c"},
		Day:       []float64{0, 0, 1},
		TimeOfDay: []string{"01:00:00", "23:59:00", "00:00:00"},
	}
	out, err := aligner.Align(tbl, false)
	require.NoError(t, err)
	assert.Less(t, out.Time[0], out.Time[1])
	assert.Less(t, out.Time[1], out.Time[2])
}

func TestAggregateSequences(t *testing.T) {
	tbl := &TimedTable{
		Name:    "vitals",
		VisitID: []string{"v2", "v1", "v1", "v1", "v2"},
		Token:   []string{"x", "a", "b", "c", "y"},
		Time:    []float64{0.2, 1.0, 1.5, 2.0, 0.9},
	}
	seqs := AggregateSequences(tbl)
	require.Len(t, seqs, 3)

	assert.Equal(t, "v1", seqs[0].VisitID)
	assert.Equal(t, 1, seqs[0].Bucket)
	assert.Equal(t, "a b", seqs[0].Joined(), "fractional times floor into their bucket, row order kept")

	assert.Equal(t, "v1", seqs[1].VisitID)
	assert.Equal(t, 2, seqs[1].Bucket)
	assert.Equal(t, "c", seqs[1].Joined())

	assert.Equal(t, "v2", seqs[2].VisitID)
	assert.Equal(t, 0, seqs[2].Bucket)
	assert.Equal(t, "x y", seqs[2].Joined())
}

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortlab/cohort/internal/source"
	"github.com/cohortlab/cohort/internal/timeline"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "visits.csv"),
		"visit_id,days_from_index,los\nv1,0,2\nv2,1,3\n")
	writeFile(t, filepath.Join(dir, "vitals", "part-000.csv"),
		"visit_id,lab_test,test_result_numeric_value,observation_day_number\n"+
			"v1,glucose,80,0\n"+
			"v1,glucose,200,1\n"+
			"v2,pulse,70,0\n")
	writeFile(t, filepath.Join(dir, "diag", "part-000.csv"),
		"visit_id,icd_code\nv1,U07.1\nv2,J96.0\nv2,U07.1\n")
	return dir
}

func fixtureConfig() Config {
	cfg := DefaultConfig()
	cfg.Granularity = timeline.Day
	cfg.Buckets = 2
	cfg.Tables = []source.TableSpec{
		{
			Table:         "vitals",
			TextColumn:    "lab_test",
			Prefix:        "vtl",
			NumericColumn: "test_result_numeric_value",
			DayColumn:     "observation_day_number",
		},
		{Table: "diag", TextColumn: "icd_code", Prefix: "dx"},
	}
	return cfg
}

func TestPipeline_Run(t *testing.T) {
	src := source.NewCSVSource(fixtureDir(t))
	p, err := New(fixtureConfig(), src, nil)
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Contains(t, result.Tables, "vitals")
	require.Contains(t, result.Tables, "diag")

	// Every token in every sequence resolves in the merged dictionary.
	for _, table := range result.Tables {
		for _, seq := range table.Sequences {
			for _, tok := range seq.Tokens {
				_, ok := result.Dictionary[tok]
				assert.True(t, ok, "token %q missing from merged dictionary", tok)
			}
		}
	}

	// Glucose values 80 and 200 land in different quantile buckets, so the
	// same category yields two distinct tokens.
	vitals := result.Tables["vitals"]
	assert.Equal(t, 3, vitals.Rows)
	distinct := map[string]bool{}
	for _, seq := range vitals.Sequences {
		for _, tok := range seq.Tokens {
			distinct[tok] = true
		}
	}
	assert.Len(t, distinct, 3, "glucose splits into two bucketed tokens plus pulse")

	// Diagnosis table has no day column: sequences sit at the visit base
	// offset (day granularity: 0 for v1, 1 for v2).
	diag := result.Tables["diag"]
	require.Len(t, diag.Sequences, 2)
	assert.Equal(t, 0, diag.Sequences[0].Bucket)
	assert.Equal(t, 1, diag.Sequences[1].Bucket)
}

func TestPipeline_Run_Reproducible(t *testing.T) {
	dir := fixtureDir(t)
	run := func() *Result {
		p, err := New(fixtureConfig(), source.NewCSVSource(dir), nil)
		require.NoError(t, err)
		res, err := p.Run(context.Background())
		require.NoError(t, err)
		return res
	}
	a := run()
	b := run()
	assert.Equal(t, a.Dictionary, b.Dictionary)
	assert.Equal(t, a.Tables, b.Tables)
}

func TestPipeline_PrefixCollisionRejected(t *testing.T) {
	cfg := fixtureConfig()
	cfg.Tables[1].Prefix = "vtl"

	_, err := New(cfg, source.NewCSVSource(fixtureDir(t)), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vtl")
}

func TestPipeline_BadGranularityRejected(t *testing.T) {
	cfg := fixtureConfig()
	cfg.Granularity = "fortnight"
	_, err := New(cfg, source.NewCSVSource(fixtureDir(t)), nil)
	assert.Error(t, err)
}

func TestPipeline_NoTablesRejected(t *testing.T) {
	cfg := DefaultConfig()
	_, err := New(cfg, source.NewCSVSource(t.TempDir()), nil)
	assert.Error(t, err)
}

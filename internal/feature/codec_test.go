package feature

import (
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortlab/cohort/internal/source"
)

func textSpec(table, prefix string) source.TableSpec {
	return source.TableSpec{Table: table, TextColumn: "text", Prefix: prefix}
}

func TestTokenize_TextOnly(t *testing.T) {
	tbl := &source.Table{
		Name:    "diag",
		VisitID: []string{"v1", "v1", "v2", "v3"},
		Text:    []string{"J96.0", "U07.1", "J96.0", "N17.9"},
	}

	tokens, dict, err := Tokenize(tbl, textSpec("diag", "dx"), 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"dx0", "dx1", "dx0", "dx2"}, tokens.Token,
		"tokens assigned in first-appearance order")
	assert.Equal(t, Dictionary{"dx0": "J96.0", "dx1": "U07.1", "dx2": "N17.9"}, dict)
}

func TestTokenize_RoundTrip(t *testing.T) {
	tbl := &source.Table{
		Name:    "vitals",
		VisitID: []string{"v1", "v1", "v2", "v2", "v3", "v3"},
		Text:    []string{"glucose", "glucose", "glucose", "pulse", "pulse", "glucose"},
		Numeric: []float64{80, 120, 200, 60, 90, 110},
	}
	spec := textSpec("vitals", "vtl")
	spec.NumericColumn = "value"

	tokens, dict, err := Tokenize(tbl, spec, 3)
	require.NoError(t, err)

	for i, tok := range tokens.Token {
		text, ok := dict[tok]
		require.True(t, ok, "every emitted token must resolve in the dictionary")
		assert.True(t, strings.HasPrefix(text, tbl.Text[i]),
			"dictionary entry %q must recover category %q up to bucket suffix", text, tbl.Text[i])
	}
}

func TestTokenize_BucketsSplitCategories(t *testing.T) {
	tbl := &source.Table{
		Name:    "lab",
		VisitID: []string{"a", "b", "c", "d", "e", "f"},
		Text:    []string{"glucose", "glucose", "glucose", "glucose", "glucose", "glucose"},
		Numeric: []float64{10, 20, 30, 40, 50, 60},
	}
	spec := textSpec("lab", "genl")
	spec.NumericColumn = "value"

	tokens, dict, err := Tokenize(tbl, spec, 3)
	require.NoError(t, err)

	distinct := map[string]bool{}
	for _, tok := range tokens.Token {
		distinct[tok] = true
	}
	assert.Len(t, distinct, 3, "one token per quantile bucket of the same category")
	assert.Len(t, dict, 3)

	// Low and high values must land in different buckets.
	assert.NotEqual(t, tokens.Token[0], tokens.Token[5])
}

func TestTokenize_ConstantValuesCollapseBuckets(t *testing.T) {
	tbl := &source.Table{
		Name:    "lab",
		VisitID: []string{"a", "b", "c"},
		Text:    []string{"sodium", "sodium", "sodium"},
		Numeric: []float64{140, 140, 140},
	}
	spec := textSpec("lab", "genl")
	spec.NumericColumn = "value"

	tokens, dict, err := Tokenize(tbl, spec, 5)
	require.NoError(t, err, "too few distinct values collapses buckets, never fails")
	assert.Equal(t, []string{"genl0", "genl0", "genl0"}, tokens.Token)
	assert.Len(t, dict, 1)
}

func TestTokenize_MissingNumericGetsNaNBucket(t *testing.T) {
	tbl := &source.Table{
		Name:    "lab",
		VisitID: []string{"a", "b", "c"},
		Text:    []string{"k", "k", "k"},
		Numeric: []float64{3.5, math.NaN(), 4.5},
	}
	spec := textSpec("lab", "genl")
	spec.NumericColumn = "value"

	tokens, dict, err := Tokenize(tbl, spec, 2)
	require.NoError(t, err)

	text := dict[tokens.Token[1]]
	assert.True(t, strings.HasSuffix(text, " qNaN"), "missing values get the explicit NaN bucket, got %q", text)
}

func TestCheckPrefixes(t *testing.T) {
	ok := []source.TableSpec{textSpec("vitals", "vtl"), textSpec("diag", "dx")}
	assert.NoError(t, CheckPrefixes(ok))

	collide := []source.TableSpec{textSpec("vitals", "vtl"), textSpec("diag", "vtl")}
	err := CheckPrefixes(collide)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vtl")
}

func TestMerge_RejectsDuplicateTokens(t *testing.T) {
	a := Dictionary{"vtl0": "pulse"}
	b := Dictionary{"dx0": "U07.1"}
	merged, err := Merge(a, b)
	require.NoError(t, err)
	assert.Len(t, merged, 2)

	c := Dictionary{"vtl0": "glucose"}
	_, err = Merge(a, c)
	assert.Error(t, err, "silent overwrite would break the round-trip invariant")
}

func TestDictionary_BlobRoundTrip(t *testing.T) {
	dict := Dictionary{"vtl0": "glucose q2", "dx0": "U07.1", "genl3": "sodium q0"}
	path := filepath.Join(t.TempDir(), "dict.gob")

	require.NoError(t, dict.WriteFile(path))
	got, err := ReadDictionary(path)
	require.NoError(t, err)
	assert.Equal(t, dict, got)
}

// Package feature maps long-form categorical values, optionally fused with
// quantized numeric buckets, onto compact tokens with a reversible
// dictionary. Bucket boundaries are computed per distinct categorical value,
// so the same measurement name splits into distinct tokens per value range.
package feature

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/cohortlab/cohort/internal/source"
)

// DefaultBuckets is the quantile bucket count used when none is configured.
const DefaultBuckets = 5

// TokenTable is an observation table after tokenization: the long-form text
// column replaced by compact feature tokens, timing columns carried through.
type TokenTable struct {
	Name      string
	VisitID   []string
	Token     []string
	Day       []float64
	TimeOfDay []string
}

// Len returns the row count.
func (t *TokenTable) Len() int { return len(t.VisitID) }

// Tokenize converts one canonical observation table into a token table and
// its dictionary. When the spec configures a numeric column, values are
// quantized into per-category quantile buckets and the bucket label is fused
// into the text before token assignment. Tokens are <prefix><ordinal> in
// first-appearance order of the distinct fused strings.
func Tokenize(tbl *source.Table, spec source.TableSpec, buckets int) (*TokenTable, Dictionary, error) {
	if err := spec.Validate(); err != nil {
		return nil, nil, err
	}
	if buckets <= 0 {
		buckets = DefaultBuckets
	}

	fused := make([]string, tbl.Len())
	copy(fused, tbl.Text)
	if spec.NumericColumn != "" && tbl.Numeric != nil {
		labels := bucketLabels(tbl.Text, tbl.Numeric, buckets)
		for i := range fused {
			fused[i] += " q" + labels[i]
		}
	}

	dict := make(Dictionary)
	tokenOf := make(map[string]string, 64)
	out := &TokenTable{
		Name:      tbl.Name,
		VisitID:   tbl.VisitID,
		Token:     make([]string, tbl.Len()),
		Day:       tbl.Day,
		TimeOfDay: tbl.TimeOfDay,
	}
	for i, text := range fused {
		tok, ok := tokenOf[text]
		if !ok {
			tok = spec.Prefix + strconv.Itoa(len(tokenOf))
			tokenOf[text] = tok
			dict[tok] = text
		}
		out.Token[i] = tok
	}
	return out, dict, nil
}

// bucketLabels assigns each row a quantile bucket label within its category.
// Categories with too few distinct values for the requested bucket count
// collapse buckets (duplicate boundaries are dropped, never an error).
// Missing numeric values land in the explicit "NaN" bucket.
func bucketLabels(text []string, numeric []float64, buckets int) []string {
	byCategory := make(map[string][]int)
	for i, t := range text {
		byCategory[t] = append(byCategory[t], i)
	}

	labels := make([]string, len(text))
	for _, idx := range byCategory {
		values := make([]float64, 0, len(idx))
		for _, i := range idx {
			if !math.IsNaN(numeric[i]) {
				values = append(values, numeric[i])
			}
		}
		edges := quantileEdges(values, buckets)
		for _, i := range idx {
			if math.IsNaN(numeric[i]) {
				labels[i] = "NaN"
				continue
			}
			labels[i] = strconv.Itoa(bucketOf(numeric[i], edges))
		}
	}
	return labels
}

// quantileEdges computes the interior quantile boundaries for the requested
// bucket count, dropping duplicates so ties collapse into wider buckets.
func quantileEdges(values []float64, buckets int) []float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	edges := make([]float64, 0, buckets-1)
	for k := 1; k < buckets; k++ {
		q := linearQuantile(sorted, float64(k)/float64(buckets))
		if len(edges) == 0 || q != edges[len(edges)-1] {
			edges = append(edges, q)
		}
	}
	return edges
}

// linearQuantile interpolates the p-quantile of sorted values, matching the
// usual linear definition over n-1 intervals.
func linearQuantile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// bucketOf returns the right-closed bucket index for v over the edges.
func bucketOf(v float64, edges []float64) int {
	for k, edge := range edges {
		if v <= edge {
			return k
		}
	}
	return len(edges)
}

// CheckPrefixes rejects feature-prefix collisions across the table specs of
// one run. Colliding prefixes would let a later table's dictionary entries
// silently overwrite an earlier table's tokens.
func CheckPrefixes(specs []source.TableSpec) error {
	seen := make(map[string]string, len(specs))
	for _, spec := range specs {
		if prev, ok := seen[spec.Prefix]; ok {
			return fmt.Errorf("feature prefix %q used by both %q and %q", spec.Prefix, prev, spec.Table)
		}
		seen[spec.Prefix] = spec.Table
	}
	return nil
}

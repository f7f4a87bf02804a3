package timeline

import (
	"math"
	"sort"
	"strings"
)

// Sequence is the ordered token string for one (time bucket, visit) cell.
type Sequence struct {
	VisitID string
	Bucket  int
	Tokens  []string
}

// Joined returns the tokens as one space-separated string.
func (s Sequence) Joined() string { return strings.Join(s.Tokens, " ") }

// AggregateSequences groups tokens by (integer time bucket, visit) and
// returns the cells sorted by visit then bucket, tokens in row order within
// a cell. Fractional timeline values floor into their bucket.
func AggregateSequences(tbl *TimedTable) []Sequence {
	type cell struct {
		visit  string
		bucket int
	}
	grouped := make(map[cell][]string)
	for i, tok := range tbl.Token {
		c := cell{visit: tbl.VisitID[i], bucket: int(math.Floor(tbl.Time[i]))}
		grouped[c] = append(grouped[c], tok)
	}

	out := make([]Sequence, 0, len(grouped))
	for c, toks := range grouped {
		out = append(out, Sequence{VisitID: c.visit, Bucket: c.bucket, Tokens: toks})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].VisitID != out[b].VisitID {
			return out[a].VisitID < out[b].VisitID
		}
		return out[a].Bucket < out[b].Bucket
	})
	return out
}

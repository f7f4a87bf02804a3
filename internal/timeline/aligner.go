// Package timeline converts per-record day and time-of-day fields into one
// monotonic timeline value per row, relative to each visit's index event,
// and aggregates tokens into ordered sequences per (time bucket, visit).
package timeline

import (
	"fmt"
	"math"
	"sync"

	"github.com/cohortlab/cohort/internal/feature"
	"github.com/cohortlab/cohort/internal/source"
)

// Granularity is the unit of the aligned timeline.
type Granularity string

const (
	Day    Granularity = "day"
	Hour   Granularity = "hour"
	Minute Granularity = "minute"
)

// ParseGranularity validates a granularity name.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case Day, Hour, Minute:
		return Granularity(s), nil
	}
	return "", fmt.Errorf("unknown granularity %q (want day, hour, or minute)", s)
}

// fromDays converts a day count into the target unit.
func (g Granularity) fromDays() float64 {
	switch g {
	case Hour:
		return 24
	case Minute:
		return 1440
	default:
		return 1
	}
}

// secondsPerUnit is the number of seconds in one timeline unit.
func (g Granularity) secondsPerUnit() float64 {
	switch g {
	case Hour:
		return 3600
	case Minute:
		return 60
	default:
		return 86400
	}
}

// secondOfDay maps every zero-padded H:M:S string to its second of day.
// Built once; a lookup avoids per-row string parsing on large tables.
var secondOfDay = sync.OnceValue(func() map[string]int {
	m := make(map[string]int, 86400)
	for h := 0; h < 24; h++ {
		for min := 0; min < 60; min++ {
			for s := 0; s < 60; s++ {
				m[fmt.Sprintf("%02d:%02d:%02d", h, min, s)] = h*3600 + min*60 + s
			}
		}
	}
	return m
})

// TimedTable is a token table with the aligned timeline column attached.
type TimedTable struct {
	Name    string
	VisitID []string
	Token   []string
	Time    []float64
}

// Aligner computes timeline values at a fixed granularity. The per-visit
// base offsets are derived from the visit lookup when the aligner is built;
// changing granularity means building a fresh aligner, never mutating one.
type Aligner struct {
	granularity Granularity
	base        map[string]float64 // visit id -> index offset in target units
	lengthDays  map[string]float64 // visit id -> length of stay in days
}

// NewAligner builds an aligner for the given granularity. It is a pure
// function of (visit lookup, granularity).
func NewAligner(visits map[string]source.VisitInfo, granularity Granularity) (*Aligner, error) {
	if _, err := ParseGranularity(string(granularity)); err != nil {
		return nil, err
	}
	mult := granularity.fromDays()
	base := make(map[string]float64, len(visits))
	length := make(map[string]float64, len(visits))
	for id, info := range visits {
		base[id] = info.DaysFromIndex * mult
		length[id] = info.LengthOfStay
	}
	return &Aligner{granularity: granularity, base: base, lengthDays: length}, nil
}

// Granularity reports the aligner's unit.
func (a *Aligner) Granularity() Granularity { return a.granularity }

// Align attaches a timeline value to every row of the token table:
// visit base offset, plus the record's day offset when present, plus the
// visit length when anchoring to the end of the visit, plus the intra-day
// fraction when a time-of-day column is present. Missing columns degrade to
// coarser timelines rather than erroring.
func (a *Aligner) Align(tbl *feature.TokenTable, endOfVisit bool) (*TimedTable, error) {
	mult := a.granularity.fromDays()
	perSec := a.granularity.secondsPerUnit()
	lookup := secondOfDay()

	out := &TimedTable{
		Name:    tbl.Name,
		VisitID: tbl.VisitID,
		Token:   tbl.Token,
		Time:    make([]float64, tbl.Len()),
	}
	for i, visit := range tbl.VisitID {
		base, ok := a.base[visit]
		if !ok {
			return nil, fmt.Errorf("align %q: visit %q not in timing lookup", tbl.Name, visit)
		}
		t := base
		if endOfVisit {
			t += a.lengthDays[visit] * mult
		}
		if tbl.Day != nil && !math.IsNaN(tbl.Day[i]) {
			t += tbl.Day[i] * mult
		}
		if tbl.TimeOfDay != nil {
			if sec, ok := lookup[tbl.TimeOfDay[i]]; ok {
				t += float64(sec) / perSec
			}
		}
		out.Time[i] = t
	}
	return out, nil
}

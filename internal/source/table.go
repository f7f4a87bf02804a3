// Package source defines the canonical observation-table shape and the
// readers that produce it. Heterogeneous raw tables (vitals, billing, labs,
// procedures, diagnoses) differ only in column names; a TableSpec maps each
// one onto the canonical shape at the read boundary, so every downstream
// stage sees one representation.
package source

import (
	"context"
	"fmt"
	"math"
)

// TableSpec names the columns of one raw observation table and the feature
// prefix its tokens carry. Numeric, day, and time columns are optional;
// missing ones degrade to coarser features and timelines rather than erroring.
type TableSpec struct {
	Table         string `yaml:"table"`
	TextColumn    string `yaml:"text_column"`
	Prefix        string `yaml:"feature_prefix"`
	NumericColumn string `yaml:"numeric_column,omitempty"`
	DayColumn     string `yaml:"day_column,omitempty"`
	TimeColumn    string `yaml:"time_column,omitempty"`
}

// Validate rejects specs that cannot produce features.
func (s TableSpec) Validate() error {
	if s.Table == "" {
		return fmt.Errorf("table spec: missing table name")
	}
	if s.TextColumn == "" {
		return fmt.Errorf("table spec %q: missing text column", s.Table)
	}
	if s.Prefix == "" {
		return fmt.Errorf("table spec %q: missing feature prefix", s.Table)
	}
	return nil
}

// Table is one observation table in canonical columnar form, keyed by visit.
// All column slices are row-parallel. Numeric holds NaN for missing values;
// Numeric, Day, and TimeOfDay are nil when the spec does not configure them.
type Table struct {
	Name      string
	VisitID   []string
	Text      []string
	Numeric   []float64
	Day       []float64
	TimeOfDay []string
}

// Len returns the row count.
func (t *Table) Len() int { return len(t.VisitID) }

// Append concatenates another partition of the same table.
func (t *Table) Append(p *Table) {
	t.VisitID = append(t.VisitID, p.VisitID...)
	t.Text = append(t.Text, p.Text...)
	if p.Numeric != nil {
		t.Numeric = append(t.Numeric, p.Numeric...)
	}
	if p.Day != nil {
		t.Day = append(t.Day, p.Day...)
	}
	if p.TimeOfDay != nil {
		t.TimeOfDay = append(t.TimeOfDay, p.TimeOfDay...)
	}
}

// VisitInfo is the per-visit timing lookup: day offset of the visit from the
// cohort index event, plus total length of stay in days. Small enough to
// hold in memory and join broadcast-style against every table.
type VisitInfo struct {
	DaysFromIndex float64
	LengthOfStay  float64
}

// Source reads partitioned observation tables and the visit timing lookup.
// Implementations stream partitions through the callback so a table never
// has to be resident all at once unless the caller materializes it.
type Source interface {
	// Visits returns the per-visit timing lookup, computed eagerly once.
	Visits(ctx context.Context) (map[string]VisitInfo, error)

	// ReadPartitions streams the partitions of one table in canonical form.
	ReadPartitions(ctx context.Context, spec TableSpec, fn func(*Table) error) error
}

// Materialize drains all partitions of one table into a single concrete
// Table. This is the explicit synchronization point between streamed reads
// and whole-table stages like quantile bucketing.
func Materialize(ctx context.Context, src Source, spec TableSpec) (*Table, error) {
	out := &Table{Name: spec.Table}
	err := src.ReadPartitions(ctx, spec, func(p *Table) error {
		out.Append(p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("materialize %q: %w", spec.Table, err)
	}
	return out, nil
}

// missingNumeric is the canonical in-table representation of an absent
// numeric value.
var missingNumeric = math.NaN()

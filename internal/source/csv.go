package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// CSVSource reads observation tables from a directory tree: one
// subdirectory per table holding any number of *.csv partition files, plus
// a visits.csv timing lookup at the root. Every file carries a header row
// with the raw column names the table specs refer to.
type CSVSource struct {
	root string
}

// NewCSVSource creates a source rooted at dir.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{root: dir}
}

// visitColumns are the fixed columns of the visits.csv lookup.
const (
	visitIDColumn   = "visit_id"
	visitIndexDays  = "days_from_index"
	visitLengthDays = "los"
)

// Visits reads the visit timing lookup eagerly.
func (s *CSVSource) Visits(ctx context.Context) (map[string]VisitInfo, error) {
	rows, header, err := readCSVFile(filepath.Join(s.root, "visits.csv"))
	if err != nil {
		return nil, fmt.Errorf("visits: %w", err)
	}
	idc, ok := header[visitIDColumn]
	if !ok {
		return nil, fmt.Errorf("visits: missing column %q", visitIDColumn)
	}
	dayc, ok := header[visitIndexDays]
	if !ok {
		return nil, fmt.Errorf("visits: missing column %q", visitIndexDays)
	}
	losc, hasLOS := header[visitLengthDays]

	out := make(map[string]VisitInfo, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		days, err := strconv.ParseFloat(row[dayc], 64)
		if err != nil {
			return nil, fmt.Errorf("visits row %d: bad %s: %w", i+1, visitIndexDays, err)
		}
		info := VisitInfo{DaysFromIndex: days}
		if hasLOS {
			if los, err := strconv.ParseFloat(row[losc], 64); err == nil {
				info.LengthOfStay = los
			}
		}
		out[row[idc]] = info
	}
	return out, nil
}

// ReadPartitions streams each partition file of the table through fn, in
// lexical file order so runs are reproducible.
func (s *CSVSource) ReadPartitions(ctx context.Context, spec TableSpec, fn func(*Table) error) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	pattern := filepath.Join(s.root, spec.Table, "*.csv")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("read %q: %w", spec.Table, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("read %q: no partitions match %s", spec.Table, pattern)
	}
	sort.Strings(files)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		part, err := s.readPartition(file, spec)
		if err != nil {
			return fmt.Errorf("read %q: %w", spec.Table, err)
		}
		if err := fn(part); err != nil {
			return err
		}
	}
	return nil
}

func (s *CSVSource) readPartition(file string, spec TableSpec) (*Table, error) {
	rows, header, err := readCSVFile(file)
	if err != nil {
		return nil, err
	}

	idc, ok := header[visitIDColumn]
	if !ok {
		return nil, fmt.Errorf("%s: missing column %q", file, visitIDColumn)
	}
	textc, ok := header[spec.TextColumn]
	if !ok {
		return nil, fmt.Errorf("%s: missing column %q", file, spec.TextColumn)
	}

	part := &Table{
		Name:    spec.Table,
		VisitID: make([]string, 0, len(rows)),
		Text:    make([]string, 0, len(rows)),
	}
	numc, hasNum := columnIfConfigured(header, spec.NumericColumn)
	dayc, hasDay := columnIfConfigured(header, spec.DayColumn)
	timec, hasTime := columnIfConfigured(header, spec.TimeColumn)

	for _, row := range rows {
		part.VisitID = append(part.VisitID, row[idc])
		part.Text = append(part.Text, row[textc])
		if hasNum {
			v := missingNumeric
			if parsed, err := strconv.ParseFloat(row[numc], 64); err == nil {
				v = parsed
			}
			part.Numeric = append(part.Numeric, v)
		}
		if hasDay {
			v := math.NaN()
			if parsed, err := strconv.ParseFloat(row[dayc], 64); err == nil {
				v = parsed
			}
			part.Day = append(part.Day, v)
		}
		if hasTime {
			part.TimeOfDay = append(part.TimeOfDay, row[timec])
		}
	}
	return part, nil
}

func columnIfConfigured(header map[string]int, name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	idx, ok := header[name]
	return idx, ok
}

func readCSVFile(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReaderSize(f, 256*1024))
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s: empty file", path)
	}

	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[name] = i
	}
	return records[1:], header, nil
}

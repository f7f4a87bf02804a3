package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresSource reads observation tables from Postgres in fixed-size
// LIMIT/OFFSET chunks ordered by visit id, so partitions stay bounded
// regardless of table size. Column names come straight from the table spec.
type PostgresSource struct {
	db        *sqlx.DB
	chunkRows int
	timeout   time.Duration
}

// PostgresConfig configures the Postgres source.
type PostgresConfig struct {
	DSN       string        `yaml:"dsn"`
	ChunkRows int           `yaml:"chunk_rows"`
	Timeout   time.Duration `yaml:"timeout"`
}

// DefaultPostgresConfig returns production defaults.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		ChunkRows: 50_000,
		Timeout:   5 * time.Minute,
	}
}

// NewPostgresSource connects and verifies the database is reachable.
func NewPostgresSource(config PostgresConfig) (*PostgresSource, error) {
	db, err := sqlx.Connect("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres source: %w", err)
	}
	if config.ChunkRows <= 0 {
		config.ChunkRows = 50_000
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	return &PostgresSource{db: db, chunkRows: config.ChunkRows, timeout: config.Timeout}, nil
}

// Close releases the connection pool.
func (s *PostgresSource) Close() error { return s.db.Close() }

// Visits reads the visit timing lookup eagerly.
func (s *PostgresSource) Visits(ctx context.Context) (map[string]VisitInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryxContext(ctx,
		`SELECT visit_id, days_from_index, COALESCE(los, 0) FROM visits`)
	if err != nil {
		return nil, fmt.Errorf("postgres visits: %w", err)
	}
	defer rows.Close()

	out := make(map[string]VisitInfo)
	for rows.Next() {
		var id string
		var info VisitInfo
		if err := rows.Scan(&id, &info.DaysFromIndex, &info.LengthOfStay); err != nil {
			return nil, fmt.Errorf("postgres visits: %w", err)
		}
		out[id] = info
	}
	return out, rows.Err()
}

// ReadPartitions streams chunkRows-sized partitions of the table through fn.
func (s *PostgresSource) ReadPartitions(ctx context.Context, spec TableSpec, fn func(*Table) error) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	query, scanners := buildSelect(spec)
	offset := 0
	for {
		part, err := s.readChunk(ctx, spec, query, scanners, offset)
		if err != nil {
			return err
		}
		if part.Len() == 0 {
			return nil
		}
		if err := fn(part); err != nil {
			return err
		}
		if part.Len() < s.chunkRows {
			return nil
		}
		offset += s.chunkRows
	}
}

func (s *PostgresSource) readChunk(ctx context.Context, spec TableSpec, query string, scanners scannerSet, offset int) (*Table, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryxContext(ctx, query, s.chunkRows, offset)
	if err != nil {
		return nil, fmt.Errorf("postgres read %q: %w", spec.Table, err)
	}
	defer rows.Close()

	part := &Table{Name: spec.Table}
	for rows.Next() {
		if err := scanners.scanInto(rows, part); err != nil {
			return nil, fmt.Errorf("postgres read %q: %w", spec.Table, err)
		}
	}
	return part, rows.Err()
}

// scannerSet tracks which optional columns the select carries.
type scannerSet struct {
	hasNumeric bool
	hasDay     bool
	hasTime    bool
}

func buildSelect(spec TableSpec) (string, scannerSet) {
	cols := fmt.Sprintf("visit_id, %s::text", quoteIdent(spec.TextColumn))
	var set scannerSet
	if spec.NumericColumn != "" {
		cols += ", " + quoteIdent(spec.NumericColumn)
		set.hasNumeric = true
	}
	if spec.DayColumn != "" {
		cols += ", " + quoteIdent(spec.DayColumn)
		set.hasDay = true
	}
	if spec.TimeColumn != "" {
		cols += ", " + quoteIdent(spec.TimeColumn) + "::text"
		set.hasTime = true
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY visit_id LIMIT $1 OFFSET $2",
		cols, quoteIdent(spec.Table))
	return query, set
}

func (ss scannerSet) scanInto(rows *sqlx.Rows, part *Table) error {
	var (
		id   string
		text string
		num  sql.NullFloat64
		day  sql.NullFloat64
		tod  sql.NullString
	)
	dest := []any{&id, &text}
	if ss.hasNumeric {
		dest = append(dest, &num)
	}
	if ss.hasDay {
		dest = append(dest, &day)
	}
	if ss.hasTime {
		dest = append(dest, &tod)
	}
	if err := rows.Scan(dest...); err != nil {
		return err
	}

	part.VisitID = append(part.VisitID, id)
	part.Text = append(part.Text, text)
	if ss.hasNumeric {
		v := missingNumeric
		if num.Valid {
			v = num.Float64
		}
		part.Numeric = append(part.Numeric, v)
	}
	if ss.hasDay {
		v := missingNumeric
		if day.Valid {
			v = day.Float64
		}
		part.Day = append(part.Day, v)
	}
	if ss.hasTime {
		part.TimeOfDay = append(part.TimeOfDay, tod.String)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

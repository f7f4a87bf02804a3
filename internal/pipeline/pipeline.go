// Package pipeline orchestrates featurization: tokenize each observation
// table, attach the aligned timeline, and aggregate tokens into per-visit
// sequences. All run state lives in an explicit Pipeline value passed
// through every stage; materialization is always an explicit call that
// returns concrete tables.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/cohortlab/cohort/internal/feature"
	"github.com/cohortlab/cohort/internal/source"
	"github.com/cohortlab/cohort/internal/telemetry"
	"github.com/cohortlab/cohort/internal/timeline"
)

// Config holds the featurization knobs.
type Config struct {
	Granularity timeline.Granularity `yaml:"granularity"`
	Buckets     int                  `yaml:"buckets"`
	EndOfVisit  bool                 `yaml:"end_of_visit"`
	Parallelism int                  `yaml:"parallelism"`
	Tables      []source.TableSpec   `yaml:"tables"`
}

// DefaultConfig returns the defaults used by study runs.
func DefaultConfig() Config {
	return Config{
		Granularity: timeline.Day,
		Buckets:     feature.DefaultBuckets,
		Parallelism: 4,
	}
}

// Validate rejects configuration errors before any reads start.
func (c Config) Validate() error {
	if _, err := timeline.ParseGranularity(string(c.Granularity)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if len(c.Tables) == 0 {
		return fmt.Errorf("config: no tables configured")
	}
	for _, spec := range c.Tables {
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if err := feature.CheckPrefixes(c.Tables); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// TableResult is the output for one observation table.
type TableResult struct {
	Table     string
	Rows      int
	Sequences []timeline.Sequence
}

// Result is the output of one featurization run.
type Result struct {
	RunID      uuid.UUID
	Tables     map[string]TableResult
	Dictionary feature.Dictionary
}

// Pipeline carries the run state explicitly: the source, the broadcast
// visit-timing lookup, and the shared telemetry registry.
type Pipeline struct {
	config  Config
	src     source.Source
	metrics *telemetry.MetricsRegistry
}

// New creates a pipeline. The telemetry registry may be nil.
func New(config Config, src source.Source, metrics *telemetry.MetricsRegistry) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{config: config, src: src, metrics: metrics}, nil
}

// Run featurizes every configured table: materialize, tokenize, align,
// aggregate. Tables run in parallel up to the configured parallelism; the
// first failure aborts the run. Per-table dictionaries merge into one
// global dictionary with a token-uniqueness assertion.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	runID := uuid.New()
	log.Info().
		Str("run_id", runID.String()).
		Int("tables", len(p.config.Tables)).
		Str("granularity", string(p.config.Granularity)).
		Msg("starting featurization run")

	visits, err := p.src.Visits(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	aligner, err := timeline.NewAligner(visits, p.config.Granularity)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	var mu sync.Mutex
	results := make(map[string]TableResult, len(p.config.Tables))
	dicts := make(map[string]feature.Dictionary, len(p.config.Tables))

	g, gctx := errgroup.WithContext(ctx)
	limit := p.config.Parallelism
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for _, spec := range p.config.Tables {
		spec := spec
		g.Go(func() error {
			res, dict, err := p.runTable(gctx, spec, aligner)
			if err != nil {
				return err
			}
			mu.Lock()
			results[spec.Table] = res
			dicts[spec.Table] = dict
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	// Merge in spec order so collisions report deterministically.
	ordered := make([]feature.Dictionary, 0, len(p.config.Tables))
	for _, spec := range p.config.Tables {
		ordered = append(ordered, dicts[spec.Table])
	}
	global, err := feature.Merge(ordered...)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	log.Info().
		Str("run_id", runID.String()).
		Int("dictionary_entries", len(global)).
		Msg("featurization run complete")
	return &Result{RunID: runID, Tables: results, Dictionary: global}, nil
}

func (p *Pipeline) runTable(ctx context.Context, spec source.TableSpec, aligner *timeline.Aligner) (TableResult, feature.Dictionary, error) {
	tbl, err := timed(p, spec.Table, "materialize", func() (*source.Table, error) {
		return source.Materialize(ctx, p.src, spec)
	})
	if err != nil {
		return TableResult{}, nil, err
	}

	var dict feature.Dictionary
	tokens, err := timed(p, spec.Table, "tokenize", func() (tt *feature.TokenTable, err error) {
		tt, dict, err = feature.Tokenize(tbl, spec, p.config.Buckets)
		return tt, err
	})
	if err != nil {
		return TableResult{}, nil, err
	}
	if p.metrics != nil {
		p.metrics.RowsTokenized.WithLabelValues(spec.Table).Add(float64(tokens.Len()))
		p.metrics.DictionaryEntries.WithLabelValues(spec.Prefix).Set(float64(len(dict)))
	}

	aligned, err := timed(p, spec.Table, "align", func() (*timeline.TimedTable, error) {
		return aligner.Align(tokens, p.config.EndOfVisit)
	})
	if err != nil {
		return TableResult{}, nil, err
	}

	seqs := timeline.AggregateSequences(aligned)
	log.Debug().
		Str("table", spec.Table).
		Int("rows", tokens.Len()).
		Int("tokens", len(dict)).
		Int("sequences", len(seqs)).
		Msg("table featurized")

	return TableResult{Table: spec.Table, Rows: tokens.Len(), Sequences: seqs}, dict, nil
}

// timed runs one stage and records its duration.
func timed[T any](p *Pipeline, table, stage string, fn func() (T, error)) (T, error) {
	start := time.Now()
	out, err := fn()
	p.observeStage(table, stage, time.Since(start))
	return out, err
}

func (p *Pipeline) observeStage(table, stage string, d time.Duration) {
	if p.metrics != nil {
		p.metrics.StageDuration.WithLabelValues(table, stage).Observe(d.Seconds())
	}
}

package bootstrap

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cohortlab/cohort/internal/async"
	"github.com/cohortlab/cohort/internal/clfmetrics"
	"github.com/cohortlab/cohort/internal/resample"
	"github.com/cohortlab/cohort/internal/telemetry"
)

// Config holds the runtime knobs for one CI run.
type Config struct {
	Iterations    int           `yaml:"iterations"`
	Alpha         float64       `yaml:"alpha"`
	Method        Method        `yaml:"method"`
	Interpolation Interpolation `yaml:"interpolation"`
	Seed          int64         `yaml:"seed"`
	Workers       int           `yaml:"workers"`
	Weighted      bool          `yaml:"weighted"`
}

// DefaultConfig returns the defaults used by study runs.
func DefaultConfig() Config {
	return Config{
		Iterations:    100,
		Alpha:         0.05,
		Method:        MethodBCa,
		Interpolation: InterpNearest,
		Seed:          resample.DefaultSeed,
		Workers:       0, // GOMAXPROCS
		Weighted:      true,
	}
}

// Validate rejects configuration errors before any resampling starts.
func (c Config) Validate() error {
	if c.Iterations <= 0 {
		return fmt.Errorf("config: iterations must be positive, got %d", c.Iterations)
	}
	if c.Alpha <= 0 || c.Alpha >= 1 {
		return fmt.Errorf("config: alpha %v out of (0, 1)", c.Alpha)
	}
	if _, err := ParseMethod(string(c.Method)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := ParseInterpolation(string(c.Interpolation)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Result is the output of one CI run.
type Result struct {
	RunID     uuid.UUID       `json:"run_id"`
	Point     clfmetrics.Row  `json:"-"`
	Intervals []Interval      `json:"intervals"`
	Scores    *ScoreMatrix    `json:"-"`
}

// Runner wires the resample engine, the metric aggregator, and the interval
// estimator into one reproducible CI computation.
type Runner struct {
	config  Config
	metric  clfmetrics.Func
	metrics *telemetry.MetricsRegistry
}

// NewRunner creates a runner. The telemetry registry may be nil.
func NewRunner(config Config, metric clfmetrics.Func, metrics *telemetry.MetricsRegistry) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if metric == nil {
		metric = clfmetrics.Binary
	}
	return &Runner{config: config, metric: metric, metrics: metrics}, nil
}

// Run computes bootstrap confidence intervals for every metric the metric
// function reports. sampleBy optionally stratifies the bootstrap draws;
// groupBy optionally averages metrics over a grouping key.
func (r *Runner) Run(ctx context.Context, targets, guesses []float64, sampleBy, groupBy []string) (*Result, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("ci run: no observations")
	}
	if len(targets) != len(guesses) {
		return nil, fmt.Errorf("ci run: %d targets vs %d guesses", len(targets), len(guesses))
	}

	runID := uuid.New()
	log.Info().
		Str("run_id", runID.String()).
		Int("n", len(targets)).
		Int("iterations", r.config.Iterations).
		Str("method", string(r.config.Method)).
		Float64("alpha", r.config.Alpha).
		Msg("starting bootstrap CI run")

	point, err := r.metric(targets, guesses, groupBy, r.config.Weighted)
	if err != nil {
		r.countRun("error")
		return nil, fmt.Errorf("ci run: point estimate: %w", err)
	}

	engine := resample.NewEngine(r.config.Seed)
	sets, err := engine.Bootstrap(r.config.Iterations, len(targets), sampleBy, nil)
	if err != nil {
		r.countRun("error")
		return nil, fmt.Errorf("ci run: %w", err)
	}

	pool := async.NewPool(async.PoolConfig{Workers: r.config.Workers})
	agg := NewAggregator(pool, r.metric)

	scores, err := agg.Scores(ctx, targets, guesses, groupBy, r.config.Weighted, sets)
	if err != nil {
		r.countRun("error")
		return nil, fmt.Errorf("ci run: %w", err)
	}
	if r.metrics != nil {
		r.metrics.BootstrapIterations.Add(float64(len(sets)))
	}

	var jack *JackknifeResult
	if r.config.Method == MethodBCa {
		jack, err = agg.Jackknife(ctx, targets, guesses, groupBy, r.config.Weighted)
		if err != nil {
			r.countRun("error")
			return nil, fmt.Errorf("ci run: %w", err)
		}
		if r.metrics != nil {
			r.metrics.JackknifeReplicates.Add(float64(len(targets)))
		}
	}

	est := &Estimator{Alpha: r.config.Alpha, Method: r.config.Method, Interpolation: r.config.Interpolation}
	intervals, err := est.Intervals(point, scores, jack)
	if err != nil {
		r.countRun("error")
		return nil, fmt.Errorf("ci run: %w", err)
	}

	r.countRun("ok")
	log.Info().Str("run_id", runID.String()).Int("metrics", len(intervals)).Msg("bootstrap CI run complete")
	return &Result{RunID: runID, Point: point, Intervals: intervals, Scores: scores}, nil
}

func (r *Runner) countRun(status string) {
	if r.metrics != nil {
		r.metrics.BootstrapRuns.WithLabelValues(string(r.config.Method), status).Inc()
	}
}

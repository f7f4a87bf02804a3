// Package telemetry holds the Prometheus metrics for cohort runs.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRegistry holds all Prometheus metrics for cohort.
type MetricsRegistry struct {
	// Bootstrap run metrics
	BootstrapIterations prometheus.Counter
	BootstrapRuns       *prometheus.CounterVec
	JackknifeReplicates prometheus.Counter

	// Featurization pipeline metrics
	RowsTokenized     *prometheus.CounterVec
	DictionaryEntries *prometheus.GaugeVec
	StageDuration     *prometheus.HistogramVec
}

// NewMetricsRegistry creates the cohort metrics registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		BootstrapIterations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cohort_bootstrap_iterations_total",
				Help: "Total number of bootstrap iterations scored",
			},
		),

		BootstrapRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cohort_bootstrap_runs_total",
				Help: "Total number of CI runs by method and status",
			},
			[]string{"method", "status"},
		),

		JackknifeReplicates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cohort_jackknife_replicates_total",
				Help: "Total number of jackknife leave-one-out replicates scored",
			},
		),

		RowsTokenized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cohort_rows_tokenized_total",
				Help: "Total observation rows tokenized by table",
			},
			[]string{"table"},
		),

		DictionaryEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cohort_dictionary_entries",
				Help: "Feature dictionary entries by table prefix",
			},
			[]string{"prefix"},
		),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cohort_stage_duration_seconds",
				Help:    "Duration of each featurization stage in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"table", "stage"},
		),
	}
}

// Register adds all metrics to the given registerer.
func (m *MetricsRegistry) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.BootstrapIterations,
		m.BootstrapRuns,
		m.JackknifeReplicates,
		m.RowsTokenized,
		m.DictionaryEntries,
		m.StageDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

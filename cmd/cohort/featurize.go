package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cohortlab/cohort/internal/config"
	"github.com/cohortlab/cohort/internal/pipeline"
	"github.com/cohortlab/cohort/internal/telemetry"
	"github.com/cohortlab/cohort/internal/timeline"
)

func newFeaturizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "featurize",
		Short: "Convert observation tables into time-indexed token sequences",
		Long: `Runs the featurization pipeline over the configured observation tables:
tokenize text and quantized numeric values, attach the aligned timeline,
aggregate tokens per (time bucket, visit), and write the merged feature
dictionary as a single binary blob.`,
		RunE: runFeaturize,
	}

	cmd.Flags().String("config", "cohort.yaml", "Path to configuration file")
	cmd.Flags().String("out", "out", "Output directory for sequence tables")
	cmd.Flags().String("granularity", "", "Override aggregation granularity (day|hour|minute)")
	return cmd
}

func runFeaturize(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	outDir, _ := cmd.Flags().GetString("out")
	granOverride, _ := cmd.Flags().GetString("granularity")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if granOverride != "" {
		gran, err := timeline.ParseGranularity(granOverride)
		if err != nil {
			return err
		}
		cfg.Pipeline.Granularity = gran
	}

	src, err := cfg.NewSource()
	if err != nil {
		return err
	}

	metrics := telemetry.NewMetricsRegistry()
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	p, err := pipeline.New(cfg.Pipeline, src, metrics)
	if err != nil {
		return err
	}
	result, err := p.Run(cmd.Context())
	if err != nil {
		return err
	}

	if err := result.Dictionary.WriteFile(cfg.DictionaryPath); err != nil {
		return err
	}
	log.Info().Str("path", cfg.DictionaryPath).Int("entries", len(result.Dictionary)).Msg("feature dictionary written")

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	for name, table := range result.Tables {
		path := filepath.Join(outDir, name+"_sequences.csv")
		if err := writeSequences(path, table); err != nil {
			return err
		}
	}
	return nil
}

func writeSequences(path string, table pipeline.TableResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write sequences: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"visit_id", "bucket", "ftrs"}); err != nil {
		return fmt.Errorf("write sequences: %w", err)
	}
	for _, seq := range table.Sequences {
		rec := []string{seq.VisitID, strconv.Itoa(seq.Bucket), seq.Joined()}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write sequences: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

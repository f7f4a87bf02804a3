package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/cohortlab/cohort/internal/bootstrap"
	"github.com/cohortlab/cohort/internal/clfmetrics"
	"github.com/cohortlab/cohort/internal/telemetry"
)

func newCICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ci <predictions.csv>",
		Short: "Compute bootstrap confidence intervals for classifier metrics",
		Long: `Reads a CSV with columns "target" and "guess" (optionally "group" for
metric averaging and "stratum" for stratified resampling) and prints one
confidence interval per metric.`,
		Args: cobra.ExactArgs(1),
		RunE: runCI,
	}

	cmd.Flags().Int("iterations", 100, "Number of bootstrap iterations")
	cmd.Flags().Float64("alpha", 0.05, "Significance level in (0, 1)")
	cmd.Flags().String("method", "bca", "CI method (pct|diff|bca)")
	cmd.Flags().String("interpolation", "nearest", "Percentile interpolation (nearest|lower|higher|linear)")
	cmd.Flags().Int64("seed", 10221983, "Master random seed")
	cmd.Flags().Int("workers", 0, "Worker count (0 = GOMAXPROCS)")
	cmd.Flags().Bool("weighted", true, "Weight group-averaged metrics by group size")
	return cmd
}

func runCI(cmd *cobra.Command, args []string) error {
	iterations, _ := cmd.Flags().GetInt("iterations")
	alpha, _ := cmd.Flags().GetFloat64("alpha")
	method, _ := cmd.Flags().GetString("method")
	interp, _ := cmd.Flags().GetString("interpolation")
	seed, _ := cmd.Flags().GetInt64("seed")
	workers, _ := cmd.Flags().GetInt("workers")
	weighted, _ := cmd.Flags().GetBool("weighted")

	cfg := bootstrap.Config{
		Iterations:    iterations,
		Alpha:         alpha,
		Method:        bootstrap.Method(method),
		Interpolation: bootstrap.Interpolation(interp),
		Seed:          seed,
		Workers:       workers,
		Weighted:      weighted,
	}

	targets, guesses, groupBy, sampleBy, err := readPredictions(args[0])
	if err != nil {
		return err
	}

	metrics := telemetry.NewMetricsRegistry()
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	runner, err := bootstrap.NewRunner(cfg, clfmetrics.Binary, metrics)
	if err != nil {
		return err
	}
	result, err := runner.Run(cmd.Context(), targets, guesses, sampleBy, groupBy)
	if err != nil {
		return err
	}

	fmt.Printf("%-8s %10s %10s %10s\n", "metric", "stat", "lower", "upper")
	for _, iv := range result.Intervals {
		fmt.Printf("%-8s %10.4f %10.4f %10.4f\n", iv.Metric, iv.Stat, iv.Lower, iv.Upper)
	}
	return nil
}

// readPredictions parses the prediction CSV into canonical numeric arrays.
// Every accepted input shape normalizes here, before any computation.
func readPredictions(path string) (targets, guesses []float64, groupBy, sampleBy []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, nil, nil, nil, fmt.Errorf("%s: no data rows", path)
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[name] = i
	}
	tc, ok := cols["target"]
	if !ok {
		return nil, nil, nil, nil, fmt.Errorf("%s: missing column %q", path, "target")
	}
	gc, ok := cols["guess"]
	if !ok {
		return nil, nil, nil, nil, fmt.Errorf("%s: missing column %q", path, "guess")
	}
	grpc, hasGroup := cols["group"]
	strc, hasStratum := cols["stratum"]

	for i, row := range records[1:] {
		t, err := strconv.ParseFloat(row[tc], 64)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("%s row %d: bad target: %w", path, i+1, err)
		}
		g, err := strconv.ParseFloat(row[gc], 64)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("%s row %d: bad guess: %w", path, i+1, err)
		}
		targets = append(targets, t)
		guesses = append(guesses, g)
		if hasGroup {
			groupBy = append(groupBy, row[grpc])
		}
		if hasStratum {
			sampleBy = append(sampleBy, row[strc])
		}
	}
	return targets, guesses, groupBy, sampleBy, nil
}

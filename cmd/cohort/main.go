package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "cohort"
	version = "v1.2.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Bootstrap confidence intervals and clinical visit featurization",
		Version: version,
		Long: `cohort computes bootstrap confidence intervals for classifier metrics
and converts time-stamped clinical observation tables into time-indexed
feature token sequences per visit.`,
	}

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace|debug|info|warn|error)")
	cobra.OnInitialize(func() {
		levelName, _ := rootCmd.PersistentFlags().GetString("log-level")
		if level, err := zerolog.ParseLevel(levelName); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	})

	rootCmd.AddCommand(newCICmd())
	rootCmd.AddCommand(newFeaturizeCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

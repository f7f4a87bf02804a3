// Package config loads the cohort run configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cohortlab/cohort/internal/bootstrap"
	"github.com/cohortlab/cohort/internal/pipeline"
	"github.com/cohortlab/cohort/internal/source"
)

// Config is the full runtime configuration for one cohort run.
type Config struct {
	Bootstrap      bootstrap.Config `yaml:"bootstrap"`
	Pipeline       pipeline.Config  `yaml:"pipeline"`
	Source         SourceConfig     `yaml:"source"`
	DictionaryPath string           `yaml:"dictionary_path"`
}

// SourceConfig selects and configures the observation-table source.
type SourceConfig struct {
	Kind     string                `yaml:"kind"` // "csv" or "postgres"
	Dir      string                `yaml:"dir,omitempty"`
	Postgres source.PostgresConfig `yaml:"postgres,omitempty"`
}

// DefaultConfig returns the defaults used by study runs.
func DefaultConfig() *Config {
	return &Config{
		Bootstrap:      bootstrap.DefaultConfig(),
		Pipeline:       pipeline.DefaultConfig(),
		Source:         SourceConfig{Kind: "csv", Dir: "data"},
		DictionaryPath: "feature_dict.gob",
	}
}

// LoadConfig reads and parses a configuration file, applying defaults for
// omitted sections.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return config, nil
}

// SaveConfig writes the configuration back to disk.
func SaveConfig(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// NewSource constructs the configured source.
func (c *Config) NewSource() (source.Source, error) {
	switch c.Source.Kind {
	case "csv":
		if c.Source.Dir == "" {
			return nil, fmt.Errorf("source: csv source needs a dir")
		}
		return source.NewCSVSource(c.Source.Dir), nil
	case "postgres":
		return source.NewPostgresSource(c.Source.Postgres)
	}
	return nil, fmt.Errorf("source: unknown kind %q (want csv or postgres)", c.Source.Kind)
}

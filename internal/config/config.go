// Package config provides unified configuration loading for spgen.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/sampling-paradigm/internal/constants"
	"github.com/nvandessel/sampling-paradigm/internal/logging"
	"gopkg.in/yaml.v3"
)

// SpgenConfig contains all spgen configuration settings.
type SpgenConfig struct {
	// Experiment holds the parameters of schedule generation and trial flow.
	Experiment ExperimentConfig `json:"experiment" yaml:"experiment"`

	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// ExperimentConfig configures the settings pool, the balanced draw and the
// trial flow.
type ExperimentConfig struct {
	// EVDiff is the exact expected value difference of every setting in the pool.
	EVDiff float64 `json:"ev_diff" yaml:"ev_diff"`

	// NTrials is the number of trials per schedule.
	NTrials int `json:"n_trials" yaml:"n_trials"`

	// CutoffP is the probability a class magnitude must exceed to count
	// toward the class quota. Negative disables the filter.
	CutoffP float64 `json:"cutoff_p" yaml:"cutoff_p"`

	// Seed fixes the random generator. Unset means a fresh seed per run.
	Seed *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// MaxSamples is the number of samples after which sampling is force stopped.
	MaxSamples int `json:"max_samples" yaml:"max_samples"`

	// ExchangeRate converts final-choice points to bonus currency.
	ExchangeRate float64 `json:"exchange_rate" yaml:"exchange_rate"`
}

// LoggingConfig configures spgen's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "warn", "info" (default), "debug", or "trace".
	// "debug" enables decision logging to .spgen/decisions.jsonl.
	// "trace" additionally logs every class candidate count.
	Level string `json:"level" yaml:"level"`

	// Format is "text" (default) or "json".
	Format string `json:"format" yaml:"format"`
}

// Default returns a SpgenConfig with the experiment's defaults.
func Default() *SpgenConfig {
	return &SpgenConfig{
		Experiment: ExperimentConfig{
			EVDiff:       constants.DefaultEVDiff,
			NTrials:      constants.DefaultNTrials,
			CutoffP:      constants.CutoffDisabled,
			MaxSamples:   constants.DefaultMaxSamples,
			ExchangeRate: constants.DefaultExchangeRate,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Path returns the default config file location, ~/.spgen/config.yaml.
func Path() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".spgen", "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.spgen/config.yaml -> environment variables
func Load() (*SpgenConfig, error) {
	config := Default()

	if configPath, err := Path(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys missing
// from the file keep their defaults.
func LoadFromFile(path string) (*SpgenConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return config, nil
}

// Save writes the configuration as YAML to path, creating its directory.
func (c *SpgenConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *SpgenConfig) Validate() error {
	e := c.Experiment
	if math.IsNaN(e.EVDiff) || math.IsInf(e.EVDiff, 0) || e.EVDiff < 0 {
		return fmt.Errorf("ev_diff must be non-negative, got %v", e.EVDiff)
	}
	if e.NTrials < 0 {
		return fmt.Errorf("n_trials must be non-negative, got %d", e.NTrials)
	}
	if math.IsNaN(e.CutoffP) || e.CutoffP >= 1 {
		return fmt.Errorf("cutoff_p must be below 1 (negative disables it), got %v", e.CutoffP)
	}
	if e.MaxSamples < 1 {
		return fmt.Errorf("max_samples must be at least 1, got %d", e.MaxSamples)
	}
	if math.IsNaN(e.ExchangeRate) || e.ExchangeRate < 0 {
		return fmt.Errorf("exchange_rate must be non-negative, got %v", e.ExchangeRate)
	}

	validLevels := map[string]bool{"warn": true, "info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: warn, info, debug, trace, or empty for default)", c.Logging.Level)
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if c.Logging.Format != "" && !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.Logging.Format)
	}

	return nil
}

// Keys lists every key accepted by Get and Set.
var Keys = []string{
	"experiment.ev_diff",
	"experiment.n_trials",
	"experiment.cutoff_p",
	"experiment.seed",
	"experiment.max_samples",
	"experiment.exchange_rate",
	"logging.level",
	"logging.format",
}

// Get returns a configuration value by dot-notation key.
func (c *SpgenConfig) Get(key string) (any, bool) {
	switch key {
	case "experiment.ev_diff":
		return c.Experiment.EVDiff, true
	case "experiment.n_trials":
		return c.Experiment.NTrials, true
	case "experiment.cutoff_p":
		return c.Experiment.CutoffP, true
	case "experiment.seed":
		if c.Experiment.Seed == nil {
			return "", true
		}
		return *c.Experiment.Seed, true
	case "experiment.max_samples":
		return c.Experiment.MaxSamples, true
	case "experiment.exchange_rate":
		return c.Experiment.ExchangeRate, true
	case "logging.level":
		return c.Logging.Level, true
	case "logging.format":
		return c.Logging.Format, true
	}
	return nil, false
}

// Set sets a configuration value by dot-notation key and validates the result.
// An empty value for experiment.seed clears the seed.
func (c *SpgenConfig) Set(key, value string) error {
	next := *c
	e := &next.Experiment

	var err error
	switch key {
	case "experiment.ev_diff":
		e.EVDiff, err = strconv.ParseFloat(value, 64)
	case "experiment.n_trials":
		e.NTrials, err = strconv.Atoi(value)
	case "experiment.cutoff_p":
		e.CutoffP, err = strconv.ParseFloat(value, 64)
	case "experiment.seed":
		e.Seed, err = parseSeed(value)
	case "experiment.max_samples":
		e.MaxSamples, err = strconv.Atoi(value)
	case "experiment.exchange_rate":
		e.ExchangeRate, err = strconv.ParseFloat(value, 64)
	case "logging.level":
		next.Logging.Level = strings.ToLower(value)
	case "logging.format":
		next.Logging.Format = strings.ToLower(value)
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}

	*c = next
	return nil
}

func parseSeed(v string) (*uint64, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Unparseable values are ignored.
func applyEnvOverrides(config *SpgenConfig) {
	if v := os.Getenv("SPGEN_EV_DIFF"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Experiment.EVDiff = f
		}
	}
	if v := os.Getenv("SPGEN_N_TRIALS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Experiment.NTrials = n
		}
	}
	if v := os.Getenv("SPGEN_CUTOFF_P"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Experiment.CutoffP = f
		}
	}
	if v := os.Getenv("SPGEN_SEED"); v != "" {
		if seed, err := parseSeed(v); err == nil {
			config.Experiment.Seed = seed
		}
	}
	if v := os.Getenv("SPGEN_MAX_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Experiment.MaxSamples = n
		}
	}
	if v := os.Getenv("SPGEN_EXCHANGE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Experiment.ExchangeRate = f
		}
	}
	if v := os.Getenv("SPGEN_LOG_LEVEL"); v != "" {
		config.Logging.Level = strings.ToLower(v)
	}
}

// NewLogger builds the operational logger described by the logging section.
func (c LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	return logging.NewLoggerWithFormat(c.Level, c.Format, w)
}

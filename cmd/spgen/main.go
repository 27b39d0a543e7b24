package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nvandessel/sampling-paradigm/internal/config"
	"github.com/nvandessel/sampling-paradigm/internal/logging"
	"github.com/nvandessel/sampling-paradigm/internal/payoff"
	"github.com/nvandessel/sampling-paradigm/internal/store"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "spgen",
		Short: "Stimulus generator for the sampling paradigm",
		Long: `spgen builds the payoff settings of a sampling-paradigm experiment.

It enumerates every two-outcome gamble pair with a fixed expected value
difference, draws trial schedules balanced over the 18 stimulus classes,
converts settings to reward lists and back, and simulates participants
through the trial flow to produce an events log.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")

	rootCmd.AddCommand(
		newVersionCmd(),
		newEnumerateCmd(),
		newScheduleCmd(),
		newShowCmd(),
		newRunsCmd(),
		newRewardsCmd(),
		newCoverageCmd(),
		newExportCmd(),
		newSimulateCmd(),
		newBonusCmd(),
		newBackupCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}

// runtimeEnv bundles what most commands need: the loaded configuration,
// an operational logger and the project's .spgen directory.
type runtimeEnv struct {
	cfg     *config.SpgenConfig
	logger  *slog.Logger
	dataDir string
}

func loadEnv(cmd *cobra.Command) (*runtimeEnv, error) {
	root, _ := cmd.Flags().GetString("root")

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &runtimeEnv{
		cfg:     cfg,
		logger:  cfg.Logging.NewLogger(cmd.ErrOrStderr()),
		dataDir: store.LocalPath(root),
	}, nil
}

// openStore opens the run database, creating .spgen if needed.
func (e *runtimeEnv) openStore() (*store.SQLiteStore, error) {
	s, err := store.Open(e.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return s, nil
}

// decisionLogger returns the JSONL decision log for this project. It is a
// no-op below debug level.
func (e *runtimeEnv) decisionLogger() *logging.DecisionLogger {
	return logging.NewDecisionLogger(e.dataDir, e.cfg.Logging.Level)
}

// addExperimentFlags registers the flags that override experiment settings.
func addExperimentFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("ev-diff", 0, "Expected value difference of the pool (default from config)")
	cmd.Flags().Int("n-trials", 0, "Number of trials (default from config)")
	cmd.Flags().Float64("cutoff", 0, "Probability a class magnitude must exceed; negative disables (default from config)")
	cmd.Flags().Uint64("seed", 0, "Random seed (default from config, else drawn)")
}

// experimentFromFlags returns the configured experiment with any flags the
// user set applied on top.
func experimentFromFlags(cmd *cobra.Command, cfg *config.SpgenConfig) config.ExperimentConfig {
	exp := cfg.Experiment
	flags := cmd.Flags()
	if flags.Changed("ev-diff") {
		exp.EVDiff, _ = flags.GetFloat64("ev-diff")
	}
	if flags.Changed("n-trials") {
		exp.NTrials, _ = flags.GetInt("n-trials")
	}
	if flags.Changed("cutoff") {
		exp.CutoffP, _ = flags.GetFloat64("cutoff")
	}
	if flags.Changed("seed") {
		seed, _ := flags.GetUint64("seed")
		exp.Seed = &seed
	}
	return exp
}

func writeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

func printSettings(w io.Writer, settings []payoff.Setting) {
	for i, s := range settings {
		fmt.Fprintf(w, "  %3d  %s\n", i, s)
	}
}

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/nvandessel/sampling-paradigm/internal/balance"
	"github.com/nvandessel/sampling-paradigm/internal/config"
	"github.com/nvandessel/sampling-paradigm/internal/logging"
	"github.com/nvandessel/sampling-paradigm/internal/payoff"
	"github.com/nvandessel/sampling-paradigm/internal/store"
	"github.com/spf13/cobra"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Draw a trial schedule balanced over the stimulus classes",
		Long: `Draw n trials from the settings pool without replacement so that every
stimulus class (each magnitude on each side) appears at least a fixed number
of times. The schedule is saved to .spgen/spgen.db together with its seed so
it can be regenerated and audited later.

Examples:
  spgen schedule                          # Configured defaults, fresh seed
  spgen schedule --n-trials 36 --seed 7
  spgen schedule --cutoff 0.2 --no-save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			noSave, _ := cmd.Flags().GetBool("no-save")

			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			exp := experimentFromFlags(cmd, env.cfg)

			decisions := env.decisionLogger()
			defer decisions.Close()

			pool := payoff.Enumerate(exp.EVDiff)
			res, err := drawSchedule(env, decisions, pool, exp)
			if err != nil {
				return err
			}

			run := runFromResult(exp, res, len(pool))
			if !noSave {
				runStore, err := env.openStore()
				if err != nil {
					return err
				}
				defer runStore.Close()

				if _, err := runStore.SaveRun(context.Background(), run); err != nil {
					return fmt.Errorf("failed to save run: %w", err)
				}
				env.logger.Info("schedule saved", "run_id", run.ID, "seed", run.Seed)
			}

			cov := balance.CoverageOf(res.Trials, exp.CutoffP)
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"run_id":     run.ID,
					"seed":       res.Seed,
					"per_class":  res.PerClass,
					"remainder":  res.Remainder,
					"pool_size":  len(pool),
					"trials":     res.Trials,
					"coverage":   cov.Map(),
					"statistics": cov.Stats(),
				})
			}

			out := cmd.OutOrStdout()
			if run.ID != "" {
				fmt.Fprintf(out, "Run %s\n", run.ID)
			}
			printRunHeader(out, run)
			fmt.Fprintln(out)
			printSettings(out, res.Trials)
			fmt.Fprintln(out)
			printCoverage(out, cov)
			return nil
		},
	}

	addExperimentFlags(cmd)
	cmd.Flags().Bool("no-save", false, "Do not store the schedule in the run database")

	return cmd
}

// drawSchedule runs the balanced sampler over pool with the experiment's options.
func drawSchedule(env *runtimeEnv, decisions *logging.DecisionLogger, pool []payoff.Setting, exp config.ExperimentConfig) (*balance.Result, error) {
	sampler := balance.NewSampler(env.logger, decisions)
	res, err := sampler.Sample(pool, balance.Options{
		NTrials: exp.NTrials,
		Cutoff:  exp.CutoffP,
		Seed:    exp.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to draw schedule: %w", err)
	}
	return res, nil
}

func runFromResult(exp config.ExperimentConfig, res *balance.Result, poolSize int) *store.Run {
	return &store.Run{
		EVDiff:    payoff.Round(exp.EVDiff),
		NTrials:   len(res.Trials),
		Cutoff:    exp.CutoffP,
		Seed:      res.Seed,
		PerClass:  res.PerClass,
		Remainder: res.Remainder,
		PoolSize:  poolSize,
		Trials:    res.Trials,
	}
}

func printRunHeader(w io.Writer, run *store.Run) {
	fmt.Fprintf(w, "  ev_diff:    %g (pool of %d)\n", run.EVDiff, run.PoolSize)
	fmt.Fprintf(w, "  trials:     %d (%d per class, %d free)\n", run.NTrials, run.PerClass, run.Remainder)
	if run.Cutoff < 0 {
		fmt.Fprintf(w, "  cutoff:     disabled\n")
	} else {
		fmt.Fprintf(w, "  cutoff:     p > %g\n", run.Cutoff)
	}
	fmt.Fprintf(w, "  seed:       %d\n", run.Seed)
}

func printCoverage(w io.Writer, cov balance.Coverage) {
	fmt.Fprintln(w, "Coverage:")
	for _, class := range balance.Classes() {
		fmt.Fprintf(w, "  %-8s %d\n", class, cov.Count(class))
	}
	stats := cov.Stats()
	fmt.Fprintf(w, "  min %d, max %d, mean %.2f, sd %.2f\n", stats.Min, stats.Max, stats.Mean, stats.StdDev)
}

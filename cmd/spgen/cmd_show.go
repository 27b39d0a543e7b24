package main

import (
	"context"
	"fmt"

	"github.com/nvandessel/sampling-paradigm/internal/config"
	"github.com/nvandessel/sampling-paradigm/internal/constants"
	"github.com/nvandessel/sampling-paradigm/internal/payoff"
	"github.com/nvandessel/sampling-paradigm/internal/store"
	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored schedule",
		Long: `Show a stored run with its trials. The run ID may be abbreviated to any
unique prefix.

With --verify the schedule is drawn again from the recorded seed and
compared trial by trial. Passive runs replay another participant's
settings and cannot be verified from a seed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			verify, _ := cmd.Flags().GetBool("verify")

			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			runStore, err := env.openStore()
			if err != nil {
				return err
			}
			defer runStore.Close()

			run, err := runStore.GetRun(context.Background(), args[0])
			if err != nil {
				return err
			}

			var mismatches []int
			if verify {
				mismatches, err = verifyRun(env, run)
				if err != nil {
					return err
				}
			}

			if jsonOut {
				result := map[string]any{"run": run}
				if verify {
					result["verified"] = len(mismatches) == 0
					result["mismatches"] = mismatches
				}
				return writeJSON(cmd.OutOrStdout(), result)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s (%s, created %s)\n", run.ID, run.Condition, run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			if run.YokedTo != "" {
				fmt.Fprintf(out, "  yoked to:   %s\n", run.YokedTo)
			}
			printRunHeader(out, run)
			fmt.Fprintln(out)
			printSettings(out, run.Trials)

			if verify {
				fmt.Fprintln(out)
				if len(mismatches) == 0 {
					fmt.Fprintln(out, "Verified: schedule matches its seed.")
				} else {
					fmt.Fprintf(out, "MISMATCH at trials %v\n", mismatches)
				}
			}
			return nil
		},
	}

	cmd.Flags().Bool("verify", false, "Regenerate the schedule from its seed and compare")

	return cmd
}

// verifyRun redraws run from its seed and returns the positions whose setting
// differs.
func verifyRun(env *runtimeEnv, run *store.Run) ([]int, error) {
	if run.Condition == constants.ConditionPassive {
		return nil, fmt.Errorf("run %s is passive and replays %q; verify that run instead", run.ID, run.YokedTo)
	}

	seed := run.Seed
	exp := config.ExperimentConfig{
		EVDiff:  run.EVDiff,
		NTrials: run.NTrials,
		CutoffP: run.Cutoff,
		Seed:    &seed,
	}
	pool := payoff.Enumerate(exp.EVDiff)
	if len(pool) != run.PoolSize {
		return nil, fmt.Errorf("pool for ev_diff %g has %d settings, run recorded %d", run.EVDiff, len(pool), run.PoolSize)
	}

	res, err := drawSchedule(env, nil, pool, exp)
	if err != nil {
		return nil, err
	}

	mismatches := []int{}
	for i := range run.Trials {
		if i >= len(res.Trials) || res.Trials[i].ID != run.Trials[i].ID {
			mismatches = append(mismatches, i)
		}
	}
	return mismatches, nil
}

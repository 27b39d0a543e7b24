package main

import (
	"context"
	"fmt"

	"github.com/nvandessel/sampling-paradigm/internal/balance"
	"github.com/nvandessel/sampling-paradigm/internal/events"
	"github.com/spf13/cobra"
)

func newCoverageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coverage [run-id]",
		Short: "Count how often each stimulus class appears",
		Long: `Count stimulus class appearances in a stored schedule, or the outcomes a
participant actually saw in an events log.

Examples:
  spgen coverage 3f2a
  spgen coverage --events sub-01_events.tsv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			eventsPath, _ := cmd.Flags().GetString("events")

			if (len(args) == 1) == (eventsPath != "") {
				return fmt.Errorf("give either a run ID or --events")
			}

			var (
				cov    balance.Coverage
				source string
			)
			if eventsPath != "" {
				evs, err := events.ReadFile(eventsPath)
				if err != nil {
					return err
				}
				tracker := balance.NewTracker()
				if err := tracker.ObserveEvents(evs); err != nil {
					return err
				}
				cov = tracker.Seen()
				source = eventsPath
			} else {
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
				cov = balance.CoverageOf(run.Trials, run.Cutoff)
				source = run.ID
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"source":     source,
					"coverage":   cov.Map(),
					"statistics": cov.Stats(),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Source: %s\n", source)
			printCoverage(out, cov)
			return nil
		},
	}

	cmd.Flags().String("events", "", "Count outcomes seen in this events TSV instead of a run")

	return cmd
}

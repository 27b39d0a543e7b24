package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage stored schedules",
		Long: `List and delete the schedules stored in .spgen/spgen.db.

Examples:
  spgen runs list              # Newest first
  spgen runs list --limit 5
  spgen runs delete 3f2a       # Delete by ID prefix`,
	}

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsDeleteCmd(),
	)

	return cmd
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			runStore, err := env.openStore()
			if err != nil {
				return err
			}
			defer runStore.Close()

			runs, err := runStore.ListRuns(context.Background(), limit)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"runs":  runs,
					"count": len(runs),
				})
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs stored. Run 'spgen schedule' to create one.")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %s  %-7s  ev_diff=%g  trials=%d  seed=%d\n",
					r.ID[:8], r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Condition, r.EVDiff, r.NTrials, r.Seed)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum runs to list (0 for all)")

	return cmd
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			runStore, err := env.openStore()
			if err != nil {
				return err
			}
			defer runStore.Close()

			ctx := context.Background()
			run, err := runStore.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			if err := runStore.DeleteRun(ctx, run.ID); err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"status": "deleted",
					"id":     run.ID,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", run.ID)
			return nil
		},
	}
}

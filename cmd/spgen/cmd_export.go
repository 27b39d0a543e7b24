package main

import (
	"context"
	"fmt"

	"github.com/nvandessel/sampling-paradigm/internal/export"
	"github.com/nvandessel/sampling-paradigm/internal/payoff"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export settings as Apache Arrow IPC files",
		Long: `Write a settings pool or a stored schedule as an Arrow IPC file, one row per
setting, for analysis in pandas, polars or R. Run parameters are stored in
the schema metadata.

Examples:
  spgen export pool --ev-diff 0.9 --out pool.arrow
  spgen export run 3f2a --out schedule.arrow`,
	}

	cmd.AddCommand(
		newExportPoolCmd(),
		newExportRunCmd(),
	)

	return cmd
}

func newExportPoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Export the whole settings pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath, _ := cmd.Flags().GetString("out")

			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			exp := experimentFromFlags(cmd, env.cfg)

			pool := payoff.Enumerate(exp.EVDiff)
			if err := export.WriteFile(outPath, pool, export.PoolMetadata(exp.EVDiff)); err != nil {
				return err
			}
			return reportExport(cmd, outPath, len(pool))
		},
	}

	cmd.Flags().Float64("ev-diff", 0, "Expected value difference of the pool (default from config)")
	cmd.Flags().String("out", "pool.arrow", "Output file")

	return cmd
}

func newExportRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <run-id>",
		Short: "Export a stored schedule in trial order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath, _ := cmd.Flags().GetString("out")

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

			if outPath == "" {
				outPath = run.ID + ".arrow"
			}
			if err := export.WriteFile(outPath, run.Trials, export.RunMetadata(run)); err != nil {
				return err
			}
			return reportExport(cmd, outPath, len(run.Trials))
		},
	}

	cmd.Flags().String("out", "", "Output file (default <run-id>.arrow)")

	return cmd
}

func reportExport(cmd *cobra.Command, path string, rows int) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"status": "exported",
			"path":   path,
			"rows":   rows,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d settings to %s\n", rows, path)
	return nil
}

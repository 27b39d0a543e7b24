package main

import (
	"fmt"

	"github.com/nvandessel/sampling-paradigm/internal/payoff"
	"github.com/spf13/cobra"
)

func newEnumerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enumerate",
		Short: "List the settings pool for an expected value difference",
		Long: `Enumerate every payoff setting whose two options differ in expected value
by exactly --ev-diff, after dropping settings with repeated magnitudes and
dominated settings.

Examples:
  spgen enumerate                    # Count the pool for the configured ev_diff
  spgen enumerate --ev-diff 0.5 --limit 10
  spgen enumerate --json --limit 0   # Every setting as JSON`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			offset, _ := cmd.Flags().GetInt("offset")
			limit, _ := cmd.Flags().GetInt("limit")
			if offset < 0 || limit < 0 {
				return fmt.Errorf("--offset and --limit must be non-negative")
			}

			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			exp := experimentFromFlags(cmd, env.cfg)

			pool := payoff.Enumerate(exp.EVDiff)
			env.logger.Debug("pool enumerated", "ev_diff", exp.EVDiff, "size", len(pool))

			from := min(offset, len(pool))
			to := len(pool)
			if limit > 0 {
				to = min(from+limit, len(pool))
			}
			page := pool[from:to]

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"ev_diff":  payoff.Round(exp.EVDiff),
					"total":    len(pool),
					"offset":   from,
					"settings": page,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d settings with ev_diff %g (of %d raw combinations)\n",
				len(pool), payoff.Round(exp.EVDiff), payoff.RawSettingCount())
			if len(page) > 0 {
				fmt.Fprintln(out)
				for _, s := range page {
					fmt.Fprintf(out, "  %s\n", s)
				}
				if to < len(pool) {
					fmt.Fprintf(out, "  ... %d more (use --offset/--limit)\n", len(pool)-to)
				}
			}
			return nil
		},
	}

	cmd.Flags().Float64("ev-diff", 0, "Expected value difference of the pool (default from config)")
	cmd.Flags().Int("offset", 0, "Skip this many settings")
	cmd.Flags().Int("limit", 20, "Maximum settings to print (0 for all)")

	return cmd
}

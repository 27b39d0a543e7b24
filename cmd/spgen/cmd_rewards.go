package main

import (
	"fmt"
	"strconv"

	"github.com/nvandessel/sampling-paradigm/internal/payoff"
	"github.com/spf13/cobra"
)

func newRewardsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewards [setting-id]",
		Short: "Convert between a setting and its reward lists",
		Long: `Show the reward lists of a setting, or derive the setting behind two lists.

Each side's list holds 10 magnitudes; a magnitude's share of the list is its
probability. Outcomes during sampling are drawn uniformly from these lists.

Examples:
  spgen rewards 4711
  spgen rewards --left 3,3,3,3,3,4,4,4,4,4 --right 1,1,1,1,1,1,1,1,8,8`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			left, _ := cmd.Flags().GetIntSlice("left")
			right, _ := cmd.Flags().GetIntSlice("right")

			var (
				setting payoff.Setting
				lists   payoff.RewardLists
				err     error
			)
			switch {
			case len(args) == 1 && (len(left) > 0 || len(right) > 0):
				return fmt.Errorf("give either a setting ID or --left/--right, not both")
			case len(args) == 1:
				id, convErr := strconv.Atoi(args[0])
				if convErr != nil {
					return fmt.Errorf("invalid setting ID %q: %w", args[0], convErr)
				}
				if setting, err = payoff.ByID(id); err != nil {
					return err
				}
				if lists, err = payoff.ToRewardLists(setting); err != nil {
					return err
				}
			case len(left) > 0 && len(right) > 0:
				lists = payoff.RewardLists{left, right}
				if setting, err = payoff.FromRewardLists(lists); err != nil {
					return err
				}
			default:
				return fmt.Errorf("give a setting ID, or both --left and --right")
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"setting": setting,
					"left":    lists[payoff.SideLeft],
					"right":   lists[payoff.SideRight],
					"ev_diff": setting.EVDiff(),
				})
			}

			out := cmd.OutOrStdout()
			if setting.ID == payoff.UnknownID {
				fmt.Fprintf(out, "Setting L(%d:%g,%d:%g) R(%d:%g,%d:%g)\n",
					setting.Left.Mag1, setting.Left.Prob1, setting.Left.Mag2, setting.Left.Prob2,
					setting.Right.Mag1, setting.Right.Prob1, setting.Right.Mag2, setting.Right.Prob2)
			} else {
				fmt.Fprintf(out, "Setting %s\n", setting)
			}
			fmt.Fprintf(out, "  ev_diff: %g\n", setting.EVDiff())
			fmt.Fprintf(out, "  left:    %v\n", lists[payoff.SideLeft])
			fmt.Fprintf(out, "  right:   %v\n", lists[payoff.SideRight])
			return nil
		},
	}

	cmd.Flags().IntSlice("left", nil, "Left reward list (comma separated magnitudes)")
	cmd.Flags().IntSlice("right", nil, "Right reward list (comma separated magnitudes)")

	return cmd
}

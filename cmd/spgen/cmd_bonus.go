package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/nvandessel/sampling-paradigm/internal/constants"
	"github.com/nvandessel/sampling-paradigm/internal/events"
	"github.com/spf13/cobra"
)

// bonusLog is the contribution of one events log to the bonus.
type bonusLog struct {
	Path      string `json:"path"`
	Condition string `json:"condition,omitempty"`
	Trials    int    `json:"trials"`
	Outcomes  []int  `json:"outcomes"`
	Points    int    `json:"points"`
}

func newBonusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bonus [events.tsv...]",
		Short: "Compute a participant's bonus from their events logs",
		Long: `Sum the outcomes of every final choice across a participant's events logs
and convert the total to a bonus, rounded up once. Rows of trials restarted
after an error are removed first.

With --active and --passive both condition logs are required; when one does
not exist yet the participant has not completed that condition and no bonus
is computed.

Examples:
  spgen bonus sub-01_events.tsv
  spgen bonus --active sub-01_task-spactive_events.tsv --passive sub-01_task-sppassive_events.tsv
  spgen bonus a.tsv b.tsv --rate 0.01`,
		RunE: runBonus,
	}

	cmd.Flags().Float64("rate", 0, "Exchange rate from points to bonus (default from config)")
	cmd.Flags().String("active", "", "Events log of the active condition")
	cmd.Flags().String("passive", "", "Events log of the passive condition")

	return cmd
}

func runBonus(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	activePath, _ := cmd.Flags().GetString("active")
	passivePath, _ := cmd.Flags().GetString("passive")

	byCondition := activePath != "" || passivePath != ""
	switch {
	case byCondition && len(args) > 0:
		return fmt.Errorf("give either events logs or --active/--passive, not both")
	case byCondition && (activePath == "" || passivePath == ""):
		return fmt.Errorf("--active and --passive must be given together")
	case !byCondition && len(args) == 0:
		return fmt.Errorf("at least one events log is required")
	}

	env, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	rate := env.cfg.Experiment.ExchangeRate
	if cmd.Flags().Changed("rate") {
		rate, _ = cmd.Flags().GetFloat64("rate")
	}
	if rate < 0 {
		return fmt.Errorf("--rate must be non-negative, got %v", rate)
	}

	type input struct{ path, condition string }
	var inputs []input
	if byCondition {
		inputs = []input{
			{activePath, constants.ConditionActive.String()},
			{passivePath, constants.ConditionPassive.String()},
		}
	} else {
		for _, p := range args {
			inputs = append(inputs, input{path: p})
		}
	}

	var (
		logs    []bonusLog
		missing []string
		trials  int
		points  int
	)
	for _, in := range inputs {
		if in.condition != "" {
			if _, err := os.Stat(in.path); errors.Is(err, fs.ErrNotExist) {
				missing = append(missing, in.condition)
				continue
			}
		}
		log, err := readBonusLog(in.path)
		if err != nil {
			return err
		}
		log.Condition = in.condition
		logs = append(logs, log)
		trials += log.Trials
		points += log.Points
	}

	complete := len(missing) == 0
	bonus := 0
	if complete {
		bonus = events.Bonus(points, rate)
	}

	if jsonOut {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"logs":     logs,
			"trials":   trials,
			"points":   points,
			"rate":     rate,
			"complete": complete,
			"missing":  missing,
			"bonus":    bonus,
		})
	}

	out := cmd.OutOrStdout()
	if !complete {
		for _, c := range missing {
			fmt.Fprintf(out, "Did not complete the %q condition yet.\n", c)
		}
		return nil
	}
	for _, l := range logs {
		label := l.Path
		if l.Condition != "" {
			label = l.Condition + ": " + l.Path
		}
		fmt.Fprintf(out, "  %s (%d trials, %d points)\n", label, l.Trials, l.Points)
	}
	fmt.Fprintf(out, "Trials:  %d\n", trials)
	fmt.Fprintf(out, "Points:  %d\n", points)
	fmt.Fprintf(out, "Bonus:   %d (rate %g)\n", bonus, rate)
	return nil
}

func readBonusLog(path string) (bonusLog, error) {
	evs, err := events.ReadFile(path)
	if err != nil {
		return bonusLog{}, err
	}
	evs = events.RemoveErrorRows(evs)

	outcomes, err := events.FinalChoiceOutcomes(evs)
	if err != nil {
		return bonusLog{}, fmt.Errorf("%s: %w", path, err)
	}
	return bonusLog{
		Path:     path,
		Trials:   events.NumTrials(evs),
		Outcomes: outcomes,
		Points:   events.TotalFinalPoints(evs),
	}, nil
}

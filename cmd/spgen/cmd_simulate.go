package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/sampling-paradigm/internal/balance"
	"github.com/nvandessel/sampling-paradigm/internal/constants"
	"github.com/nvandessel/sampling-paradigm/internal/events"
	"github.com/nvandessel/sampling-paradigm/internal/export"
	"github.com/nvandessel/sampling-paradigm/internal/payoff"
	"github.com/nvandessel/sampling-paradigm/internal/store"
	"github.com/nvandessel/sampling-paradigm/internal/trial"
	"github.com/spf13/cobra"
)

// Stream identifiers keep the driver's outcome draws and the agent's
// decisions independent for the same seed.
const (
	driverStream = 1
	agentStream  = 2
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulated participant through the trial flow",
		Long: `Play a synthetic participant through every trial and write the events log
(TSV) with its JSON sidecar.

Trial settings come from one of:
  (default)            a freshly drawn balanced schedule, saved as a run
  --run <id>           a stored schedule
  --schedule <file>    an Arrow file written by 'spgen export'
  --adaptive           picked online to show the least seen stimulus class
  --replay <events>    another participant's log (yoked passive condition);
                       their sampling is repeated outcome for outcome

Examples:
  spgen simulate --seed 42 --out sub-01_events.tsv
  spgen simulate --adaptive --n-trials 36
  spgen simulate --replay sub-01_events.tsv --yoked-to 3f2a --out sub-02_events.tsv`,
		RunE: runSimulate,
	}

	addExperimentFlags(cmd)
	cmd.Flags().String("out", "", "Events TSV to write (default <root>/events.tsv)")
	cmd.Flags().Bool("force", false, "Overwrite an existing events file")
	cmd.Flags().String("run", "", "Use the trials of a stored run")
	cmd.Flags().String("schedule", "", "Use the trials of an Arrow schedule file")
	cmd.Flags().Bool("adaptive", false, "Pick settings online by least seen stimulus class")
	cmd.Flags().String("replay", "", "Replay the settings and sampling of an events TSV")
	cmd.Flags().String("yoked-to", "", "Run ID of the replayed participant, stored with the passive run")
	cmd.Flags().Float64("stop-prob", 0.25, "Probability the simulated participant stops after each sample")
	cmd.Flags().Int("max-samples", 0, "Samples per trial before a forced stop (default from config)")
	cmd.Flags().Bool("no-save", false, "Do not store the simulated schedule as a run")

	return cmd
}

func runSimulate(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	root, _ := cmd.Flags().GetString("root")
	outPath, _ := cmd.Flags().GetString("out")
	force, _ := cmd.Flags().GetBool("force")
	runID, _ := cmd.Flags().GetString("run")
	schedulePath, _ := cmd.Flags().GetString("schedule")
	adaptive, _ := cmd.Flags().GetBool("adaptive")
	replayPath, _ := cmd.Flags().GetString("replay")
	yokedTo, _ := cmd.Flags().GetString("yoked-to")
	stopProb, _ := cmd.Flags().GetFloat64("stop-prob")
	maxSamples, _ := cmd.Flags().GetInt("max-samples")
	noSave, _ := cmd.Flags().GetBool("no-save")

	modes := 0
	for _, set := range []bool{runID != "", schedulePath != "", adaptive, replayPath != ""} {
		if set {
			modes++
		}
	}
	if modes > 1 {
		return fmt.Errorf("--run, --schedule, --adaptive and --replay are mutually exclusive")
	}
	if yokedTo != "" && replayPath == "" {
		return fmt.Errorf("--yoked-to requires --replay")
	}
	if stopProb <= 0 || stopProb > 1 {
		return fmt.Errorf("--stop-prob must be in (0, 1], got %v", stopProb)
	}

	env, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	exp := experimentFromFlags(cmd, env.cfg)
	if maxSamples == 0 {
		maxSamples = exp.MaxSamples
	}
	if maxSamples < 1 {
		return fmt.Errorf("--max-samples must be at least 1, got %d", maxSamples)
	}
	if exp.Seed == nil {
		seed := rand.Uint64()
		exp.Seed = &seed
	}
	seed := *exp.Seed

	if outPath == "" {
		outPath = filepath.Join(root, "events.tsv")
	}
	if _, err := os.Stat(outPath); err == nil {
		if !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", outPath)
		}
		if err := os.Remove(outPath); err != nil {
			return fmt.Errorf("failed to remove %s: %w", outPath, err)
		}
	}

	ctx := context.Background()
	agentRng := rand.New(rand.NewPCG(seed, agentStream))
	var agent trial.Agent = &trial.RandomAgent{Rng: agentRng, StopProb: stopProb}
	var observer trial.Observer
	var source trial.Source
	var nTrials int
	var run *store.Run

	switch {
	case runID != "":
		runStore, err := env.openStore()
		if err != nil {
			return err
		}
		stored, err := runStore.GetRun(ctx, runID)
		runStore.Close()
		if err != nil {
			return err
		}
		source = trial.NewScheduleSource(stored.Trials)
		nTrials = len(stored.Trials)

	case schedulePath != "":
		settings, _, err := export.ReadFile(schedulePath)
		if err != nil {
			return err
		}
		source = trial.NewScheduleSource(settings)
		nTrials = len(settings)

	case adaptive:
		adaptiveSource := trial.NewAdaptiveSource(payoff.Enumerate(exp.EVDiff), balance.NewTracker(), rand.New(balance.NewSource(seed)))
		if adaptiveSource.Remaining() < exp.NTrials {
			return fmt.Errorf("%w: pool has %d settings, need %d", balance.ErrInfeasible, adaptiveSource.Remaining(), exp.NTrials)
		}
		source = adaptiveSource
		observer = adaptiveSource
		nTrials = exp.NTrials

	case replayPath != "":
		evs, err := events.ReadFile(replayPath)
		if err != nil {
			return err
		}
		replaySource := trial.NewReplaySource(evs)
		source = replaySource
		agent = trial.NewReplayAgent(replaySource, agent)
		nTrials = replaySource.NumTrials()
		run = &store.Run{
			EVDiff:    payoff.Round(exp.EVDiff),
			Cutoff:    exp.CutoffP,
			Seed:      seed,
			Condition: constants.ConditionPassive,
			YokedTo:   yokedTo,
		}

	default:
		decisions := env.decisionLogger()
		pool := payoff.Enumerate(exp.EVDiff)
		res, err := drawSchedule(env, decisions, pool, exp)
		decisions.Close()
		if err != nil {
			return err
		}
		source = trial.NewScheduleSource(res.Trials)
		nTrials = len(res.Trials)
		run = runFromResult(exp, res, len(pool))
	}

	recorder, err := events.NewWriter(outPath, version)
	if err != nil {
		return err
	}
	defer recorder.Close()

	served := &servedSource{Source: source}
	opts := []trial.Option{trial.WithMaxSamples(maxSamples), trial.WithLogger(env.logger)}
	if observer != nil {
		opts = append(opts, trial.WithObserver(observer))
	}
	driver := trial.NewDriver(served, recorder, rand.New(rand.NewPCG(seed, driverStream)), opts...)

	summary, err := trial.Run(driver, agent, nTrials)
	if err != nil {
		return fmt.Errorf("simulation stopped after %d trials: %w", summary.Trials, err)
	}
	if err := recorder.Close(); err != nil {
		return fmt.Errorf("failed to close events log: %w", err)
	}

	sidecarPath := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".json"
	if err := writeSidecar(sidecarPath); err != nil {
		return err
	}

	if run != nil && !noSave {
		if run.Condition == constants.ConditionPassive {
			run.Trials = served.settings
			run.NTrials = len(served.settings)
			run.PoolSize = len(payoff.Enumerate(run.EVDiff))
		}
		runStore, err := env.openStore()
		if err != nil {
			return err
		}
		defer runStore.Close()
		if _, err := runStore.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
	}

	bonus := events.Bonus(summary.Points, env.cfg.Experiment.ExchangeRate)
	env.logger.Info("simulation finished", "trials", summary.Trials, "samples", summary.Samples, "points", summary.Points)

	runIDOut := ""
	if run != nil {
		runIDOut = run.ID
	}
	if jsonOut {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"events":  outPath,
			"sidecar": sidecarPath,
			"run_id":  runIDOut,
			"seed":    seed,
			"summary": summary,
			"bonus":   bonus,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Simulated %d trials (seed %d)\n", summary.Trials, seed)
	fmt.Fprintf(out, "  samples:      %d (%d forced stops, %d restarts)\n", summary.Samples, summary.ForcedStops, summary.Restarts)
	fmt.Fprintf(out, "  points:       %d (bonus %d)\n", summary.Points, bonus)
	fmt.Fprintf(out, "  events:       %s\n", outPath)
	fmt.Fprintf(out, "  sidecar:      %s\n", sidecarPath)
	if runIDOut != "" {
		fmt.Fprintf(out, "  run:          %s\n", runIDOut)
	}
	return nil
}

// servedSource remembers the setting served for each trial. A restarted
// trial overwrites its earlier entry.
type servedSource struct {
	trial.Source
	settings []payoff.Setting
}

func (s *servedSource) Next(n int) (payoff.Setting, error) {
	setting, err := s.Source.Next(n)
	if err != nil {
		return setting, err
	}
	if n < len(s.settings) {
		s.settings[n] = setting
	} else {
		s.settings = append(s.settings, setting)
	}
	return setting, nil
}

func writeSidecar(path string) error {
	data, err := json.MarshalIndent(events.Sidecar(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode sidecar: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write sidecar: %w", err)
	}
	return nil
}

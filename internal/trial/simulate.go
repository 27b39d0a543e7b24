package trial

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/nvandessel/sampling-paradigm/internal/events"
	"github.com/nvandessel/sampling-paradigm/internal/payoff"
)

// Action is one decision during the sampling phase.
type Action struct {
	Side payoff.Side
	Stop bool
	RT   float64

	// Outcome, when set, is replayed instead of drawn.
	Outcome *int
}

// Agent makes the decisions of a simulated participant.
type Agent interface {
	Act(d *Driver) Action
	Choose(d *Driver) (payoff.Side, float64)
}

// Summary reports what a simulated run did.
type Summary struct {
	Trials      int `json:"trials"`
	Samples     int `json:"samples"`
	ForcedStops int `json:"forced_stops"`
	Restarts    int `json:"restarts"`
	Points      int `json:"points"`
}

// maxRestarts bounds premature stops per trial so a bad agent cannot loop forever.
const maxRestarts = 100

// Run plays nTrials trials with agent and brackets them with the begin and
// end markers.
func Run(d *Driver, agent Agent, nTrials int) (Summary, error) {
	var sum Summary
	if err := d.Begin(); err != nil {
		return sum, err
	}

	restarts := 0
	for d.Trial() < nTrials {
		if _, err := d.StartTrial(); err != nil {
			return sum, err
		}

		premature, err := runSampling(d, agent, &sum)
		if err != nil {
			return sum, err
		}
		if premature {
			sum.Restarts++
			restarts++
			if restarts > maxRestarts {
				return sum, fmt.Errorf("trial %d restarted more than %d times", d.Trial(), maxRestarts)
			}
			continue
		}
		restarts = 0

		side, rt := agent.Choose(d)
		outcome, err := d.FinalChoice(side, rt)
		if err != nil {
			return sum, err
		}
		sum.Points += outcome
		sum.Trials++
	}

	return sum, d.End()
}

func runSampling(d *Driver, agent Agent, sum *Summary) (bool, error) {
	for {
		a := agent.Act(d)
		if a.Stop {
			err := d.Stop(a.RT)
			if errors.Is(err, ErrPrematureStop) {
				return true, nil
			}
			return false, err
		}

		var err error
		if a.Outcome != nil {
			err = d.Replay(a.Side, *a.Outcome, a.RT)
		} else {
			_, err = d.Sample(a.Side, a.RT)
		}
		switch {
		case errors.Is(err, ErrForcedStop):
			sum.ForcedStops++
			return false, nil
		case err != nil:
			return false, err
		}
		sum.Samples++
	}
}

// RandomAgent samples a uniformly random side and stops with probability
// StopProb after each sample. It never stops before the first sample.
type RandomAgent struct {
	Rng      *rand.Rand
	StopProb float64
}

// Act implements Agent.
func (a *RandomAgent) Act(d *Driver) Action {
	if d.Samples() > 0 && a.Rng.Float64() < a.StopProb {
		return Action{Stop: true, RT: a.rt()}
	}
	return Action{Side: payoff.Sides[a.Rng.IntN(len(payoff.Sides))], RT: a.rt()}
}

// Choose implements Agent.
func (a *RandomAgent) Choose(d *Driver) (payoff.Side, float64) {
	return payoff.Sides[a.Rng.IntN(len(payoff.Sides))], a.rt()
}

func (a *RandomAgent) rt() float64 {
	return payoff.Round(0.3 + a.Rng.Float64())
}

// ReplayAgent repeats the sampling of a recorded participant, outcome for
// outcome. Final choices are delegated to Chooser.
type ReplayAgent struct {
	source  *ReplaySource
	Chooser Agent

	trial   int
	actions []events.Event
	pos     int
}

// NewReplayAgent replays the sampling recorded in source.
func NewReplayAgent(source *ReplaySource, chooser Agent) *ReplayAgent {
	return &ReplayAgent{source: source, Chooser: chooser, trial: -1}
}

// Act implements Agent. Recorded stops are replayed as stops, and a recorded
// forced stop as one more sample so the driver forces it again.
func (a *ReplayAgent) Act(d *Driver) Action {
	if a.trial != d.Trial() {
		a.trial = d.Trial()
		a.actions = a.source.Actions(a.trial)
		a.pos = 0
	}

	var outcomes []int
	for a.pos < len(a.actions) {
		e := a.actions[a.pos]
		a.pos++
		rt := 0.0
		if e.ResponseTime != nil {
			rt = *e.ResponseTime
		}
		switch e.ActionType {
		case events.ActionStop:
			return Action{Stop: true, RT: rt}
		case events.ActionForcedStop:
			return Action{Side: payoff.Side(*e.Action), RT: rt}
		case events.ActionSample:
			if outcomes == nil {
				outcomes = a.source.Outcomes(a.trial)
			}
			idx := d.Samples()
			if idx >= len(outcomes) {
				return Action{Stop: true, RT: rt}
			}
			return Action{Side: payoff.Side(*e.Action), RT: rt, Outcome: events.Int(outcomes[idx])}
		}
	}
	return Action{Stop: true}
}

// Choose implements Agent.
func (a *ReplayAgent) Choose(d *Driver) (payoff.Side, float64) {
	return a.Chooser.Choose(d)
}

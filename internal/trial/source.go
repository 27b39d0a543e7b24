// Package trial drives the sampling paradigm without a display: it hands out
// one payoff setting per trial, draws outcomes for samples and final choices,
// and records every step to the events log.
package trial

import (
	"fmt"
	"math/rand/v2"

	"github.com/nvandessel/sampling-paradigm/internal/balance"
	"github.com/nvandessel/sampling-paradigm/internal/events"
	"github.com/nvandessel/sampling-paradigm/internal/payoff"
)

// Source provides the payoff setting of each trial.
type Source interface {
	// Next returns the setting for trial. It may be called more than once
	// for the same trial when the trial is restarted after an error.
	Next(trial int) (payoff.Setting, error)
}

// Observer is notified of every outcome shown during sampling.
type Observer interface {
	Observe(side payoff.Side, outcome int) error
}

// ScheduleSource serves a precomputed schedule, one setting per trial.
type ScheduleSource struct {
	trials []payoff.Setting
}

// NewScheduleSource wraps a schedule such as balance.Result.Trials.
func NewScheduleSource(trials []payoff.Setting) *ScheduleSource {
	return &ScheduleSource{trials: trials}
}

// Next returns the scheduled setting.
func (s *ScheduleSource) Next(trial int) (payoff.Setting, error) {
	if trial < 0 || trial >= len(s.trials) {
		return payoff.Setting{}, fmt.Errorf("trial %d outside schedule of %d trials", trial, len(s.trials))
	}
	return s.trials[trial], nil
}

// Len returns the number of scheduled trials.
func (s *ScheduleSource) Len() int {
	return len(s.trials)
}

// AdaptiveSource picks each setting online so that it shows the stimulus
// class the participant has seen least so far. Picked settings leave the pool.
type AdaptiveSource struct {
	pool    []payoff.Setting
	tracker *balance.Tracker
	rng     *rand.Rand
}

// NewAdaptiveSource copies pool; the caller's slice is not modified.
func NewAdaptiveSource(pool []payoff.Setting, tracker *balance.Tracker, rng *rand.Rand) *AdaptiveSource {
	return &AdaptiveSource{
		pool:    append([]payoff.Setting(nil), pool...),
		tracker: tracker,
		rng:     rng,
	}
}

// Next picks and removes a setting from the pool.
func (a *AdaptiveSource) Next(trial int) (payoff.Setting, error) {
	i, _, err := a.tracker.Pick(a.pool, a.rng)
	if err != nil {
		return payoff.Setting{}, fmt.Errorf("trial %d: %w", trial, err)
	}
	s := a.pool[i]
	a.pool = append(a.pool[:i], a.pool[i+1:]...)
	return s, nil
}

// Observe forwards sampled outcomes to the tracker.
func (a *AdaptiveSource) Observe(side payoff.Side, outcome int) error {
	return a.tracker.Observe(side, outcome)
}

// Remaining returns how many settings are left in the pool.
func (a *AdaptiveSource) Remaining() int {
	return len(a.pool)
}

// ReplaySource serves the settings recorded in another participant's events
// log, for the yoked passive condition.
type ReplaySource struct {
	events []events.Event
}

// NewReplaySource drops error-voided rows from evs before serving settings.
func NewReplaySource(evs []events.Event) *ReplaySource {
	return &ReplaySource{events: events.RemoveErrorRows(evs)}
}

// Next returns the last setting logged for trial.
func (r *ReplaySource) Next(trial int) (payoff.Setting, error) {
	return events.PayoffForTrial(r.events, trial)
}

// Actions returns the recorded sampling-phase actions of a trial, in order.
func (r *ReplaySource) Actions(trial int) []events.Event {
	var out []events.Event
	for _, e := range r.events {
		if !e.TrialIs(trial) || e.Action == nil {
			continue
		}
		switch e.ActionType {
		case events.ActionSample, events.ActionStop, events.ActionForcedStop, events.ActionPrematureStop:
			out = append(out, e)
		}
	}
	return out
}

// Outcomes returns the sampled outcomes shown in a trial, in order.
func (r *ReplaySource) Outcomes(trial int) []int {
	var out []int
	for _, e := range r.events {
		if e.TrialIs(trial) && e.Outcome != nil && e.ValueIs(events.ValueShowOutcomeLeft, events.ValueShowOutcomeRight) {
			out = append(out, *e.Outcome)
		}
	}
	return out
}

// NumTrials returns the number of trials in the recorded log.
func (r *ReplaySource) NumTrials() int {
	return events.NumTrials(r.events)
}

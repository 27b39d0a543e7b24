package trial

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/nvandessel/sampling-paradigm/internal/constants"
	"github.com/nvandessel/sampling-paradigm/internal/events"
	"github.com/nvandessel/sampling-paradigm/internal/logging"
	"github.com/nvandessel/sampling-paradigm/internal/payoff"
)

var (
	// ErrForcedStop is returned by Sample when the maximum number of samples
	// was already taken. The trial moves on to its final choice.
	ErrForcedStop = errors.New("maximum number of samples reached")

	// ErrPrematureStop is returned by Stop before any sample was taken.
	// The trial is voided and must be started again.
	ErrPrematureStop = errors.New("stopped before taking a sample")

	// ErrWrongPhase is returned when an action does not fit the trial phase.
	ErrWrongPhase = errors.New("action not allowed in this phase")
)

// Phase is the state of the current trial.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSampling
	PhaseChoosing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSampling:
		return "sampling"
	case PhaseChoosing:
		return "choosing"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Recorder receives events. *events.Writer implements it.
type Recorder interface {
	Write(e events.Event) error
}

// Driver runs trials one after another.
type Driver struct {
	source     Source
	recorder   Recorder
	rng        *rand.Rand
	logger     *slog.Logger
	observer   Observer
	maxSamples int
	now        func() time.Time
	start      time.Time

	trial   int
	phase   Phase
	setting payoff.Setting
	lists   payoff.RewardLists
	samples int
}

// Option configures a Driver.
type Option func(*Driver)

// WithMaxSamples sets the number of samples after which sampling is force stopped.
func WithMaxSamples(n int) Option {
	return func(d *Driver) { d.maxSamples = n }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = logging.OrDiscard(l) }
}

// WithObserver receives every sampled outcome, e.g. an AdaptiveSource.
func WithObserver(o Observer) Option {
	return func(d *Driver) { d.observer = o }
}

// WithClock replaces time.Now for onsets.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// NewDriver creates a driver. Event onsets are measured from this call.
func NewDriver(source Source, recorder Recorder, rng *rand.Rand, opts ...Option) *Driver {
	d := &Driver{
		source:     source,
		recorder:   recorder,
		rng:        rng,
		logger:     logging.Discard(),
		maxSamples: constants.DefaultMaxSamples,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.start = d.now()
	return d
}

// Trial returns the index of the current (or next) trial.
func (d *Driver) Trial() int { return d.trial }

// Phase returns the current phase.
func (d *Driver) Phase() Phase { return d.phase }

// Samples returns how many samples were taken in the current trial.
func (d *Driver) Samples() int { return d.samples }

// Setting returns the setting of the current trial.
func (d *Driver) Setting() payoff.Setting { return d.setting }

// Begin records the start of the experiment.
func (d *Driver) Begin() error {
	return d.record(events.Event{Value: events.Int(events.ValueBeginExperiment)})
}

// End records the end of the experiment.
func (d *Driver) End() error {
	return d.record(events.Event{Value: events.Int(events.ValueEndExperiment)})
}

// StartTrial fetches the trial's setting, builds its reward lists and records
// both the setting and the new-trial marker.
func (d *Driver) StartTrial() (payoff.Setting, error) {
	if d.phase != PhaseIdle {
		return payoff.Setting{}, fmt.Errorf("%w: start trial while %s", ErrWrongPhase, d.phase)
	}

	s, err := d.source.Next(d.trial)
	if err != nil {
		return payoff.Setting{}, fmt.Errorf("failed to get setting for trial %d: %w", d.trial, err)
	}
	lists, err := payoff.ToRewardLists(s)
	if err != nil {
		return payoff.Setting{}, fmt.Errorf("trial %d: %w", d.trial, err)
	}

	d.setting = s
	d.lists = lists
	d.samples = 0
	d.phase = PhaseSampling

	if err := d.record(events.Event{Trial: events.Int(d.trial), Setting: &s}); err != nil {
		return payoff.Setting{}, err
	}
	if err := d.record(events.Event{Trial: events.Int(d.trial), Value: events.Int(events.ValueNewTrial)}); err != nil {
		return payoff.Setting{}, err
	}

	d.logger.Debug("trial started", "trial", d.trial, "setting", s.String())
	return s, nil
}

// Sample draws an outcome from side and records the action and the outcome.
// Once MaxSamples were taken, it records a forced stop instead, moves to the
// final choice and returns ErrForcedStop.
func (d *Driver) Sample(side payoff.Side, rt float64) (int, error) {
	if err := d.checkSample(side); err != nil {
		return 0, err
	}
	if d.samples >= d.maxSamples {
		return 0, d.forceStop(side, rt)
	}
	outcome, err := d.lists.Draw(side, d.rng)
	if err != nil {
		return 0, err
	}
	return outcome, d.recordSample(side, outcome, rt)
}

// Replay records a sample whose outcome is given rather than drawn, as in
// the passive condition. The outcome must be possible on that side.
func (d *Driver) Replay(side payoff.Side, outcome int, rt float64) error {
	if err := d.checkSample(side); err != nil {
		return err
	}
	if d.samples >= d.maxSamples {
		return d.forceStop(side, rt)
	}
	if !slices.Contains(d.lists[side], outcome) {
		return fmt.Errorf("outcome %d is not possible on the %s side of %v", outcome, side, d.setting)
	}
	return d.recordSample(side, outcome, rt)
}

func (d *Driver) checkSample(side payoff.Side) error {
	if d.phase != PhaseSampling {
		return fmt.Errorf("%w: sample while %s", ErrWrongPhase, d.phase)
	}
	if !side.Valid() {
		return fmt.Errorf("invalid side %d", int(side))
	}
	return nil
}

func (d *Driver) recordSample(side payoff.Side, outcome int, rt float64) error {
	d.samples++
	choice, show := events.ValueLeftChoice, events.ValueShowOutcomeLeft
	if side == payoff.SideRight {
		choice, show = events.ValueRightChoice, events.ValueShowOutcomeRight
	}

	if err := d.record(events.Event{
		Trial:        events.Int(d.trial),
		ActionType:   events.ActionSample,
		Action:       events.Int(int(side)),
		ResponseTime: events.Float(rt),
		Value:        events.Int(choice),
	}); err != nil {
		return err
	}
	if err := d.record(events.Event{
		Trial:   events.Int(d.trial),
		Outcome: events.Int(outcome),
		Value:   events.Int(show),
	}); err != nil {
		return err
	}

	if d.observer != nil {
		if err := d.observer.Observe(side, outcome); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) forceStop(side payoff.Side, rt float64) error {
	if err := d.record(events.Event{
		Trial:        events.Int(d.trial),
		ActionType:   events.ActionForcedStop,
		Action:       events.Int(int(side)),
		ResponseTime: events.Float(rt),
		Value:        events.Int(events.ValueForcedStop),
	}); err != nil {
		return err
	}
	d.phase = PhaseChoosing
	d.logger.Debug("forced stop", "trial", d.trial, "samples", d.samples)
	return ErrForcedStop
}

// Stop ends sampling. Stopping before the first sample voids the trial: a
// premature stop and a reset marker are recorded, the trial index stays the
// same and ErrPrematureStop is returned.
func (d *Driver) Stop(rt float64) error {
	if d.phase != PhaseSampling {
		return fmt.Errorf("%w: stop while %s", ErrWrongPhase, d.phase)
	}

	if d.samples == 0 {
		if err := d.record(events.Event{
			Trial:        events.Int(d.trial),
			ActionType:   events.ActionPrematureStop,
			Action:       events.Int(events.ActionStopping),
			ResponseTime: events.Float(rt),
			Value:        events.Int(events.ValuePrematureStop),
		}); err != nil {
			return err
		}
		if err := d.record(events.Event{
			Trial: events.Int(d.trial),
			Value: events.Int(events.ValueError),
			Reset: true,
		}); err != nil {
			return err
		}
		d.phase = PhaseIdle
		d.logger.Debug("premature stop", "trial", d.trial)
		return ErrPrematureStop
	}

	if err := d.record(events.Event{
		Trial:        events.Int(d.trial),
		ActionType:   events.ActionStop,
		Action:       events.Int(events.ActionStopping),
		ResponseTime: events.Float(rt),
		Value:        events.Int(events.ValueFinalChoice),
	}); err != nil {
		return err
	}
	d.phase = PhaseChoosing
	return nil
}

// FinalChoice draws the payout from side, records it, and ends the trial.
func (d *Driver) FinalChoice(side payoff.Side, rt float64) (int, error) {
	if d.phase != PhaseChoosing {
		return 0, fmt.Errorf("%w: final choice while %s", ErrWrongPhase, d.phase)
	}
	outcome, err := d.lists.Draw(side, d.rng)
	if err != nil {
		return 0, err
	}

	choice, show := events.ValueLeftFinalChoice, events.ValueShowFinalOutcomeLeft
	if side == payoff.SideRight {
		choice, show = events.ValueRightFinalChoice, events.ValueShowFinalOutcomeRight
	}
	if err := d.record(events.Event{
		Trial:        events.Int(d.trial),
		ActionType:   events.ActionFinalChoice,
		Action:       events.Int(int(side)),
		ResponseTime: events.Float(rt),
		Value:        events.Int(choice),
	}); err != nil {
		return 0, err
	}
	if err := d.record(events.Event{
		Trial:   events.Int(d.trial),
		Outcome: events.Int(outcome),
		Value:   events.Int(show),
	}); err != nil {
		return 0, err
	}

	d.logger.Debug("trial finished", "trial", d.trial, "samples", d.samples, "outcome", outcome)
	d.trial++
	d.phase = PhaseIdle
	return outcome, nil
}

func (d *Driver) record(e events.Event) error {
	e.Onset = d.now().Sub(d.start).Seconds()
	if err := d.recorder.Write(e); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

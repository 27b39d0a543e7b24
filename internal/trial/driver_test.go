package trial

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/nvandessel/sampling-paradigm/internal/events"
	"github.com/nvandessel/sampling-paradigm/internal/payoff"
)

// memRecorder keeps events in memory.
type memRecorder struct {
	events []events.Event
}

func (m *memRecorder) Write(e events.Event) error {
	m.events = append(m.events, e)
	return nil
}

// stepClock advances one second per call.
func stepClock() func() time.Time {
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now := t
		t = t.Add(time.Second)
		return now
	}
}

func testSchedule(t *testing.T, n int) []payoff.Setting {
	t.Helper()
	pool := payoff.Enumerate(0.9)
	if len(pool) < n {
		t.Fatalf("pool has %d settings, need %d", len(pool), n)
	}
	return pool[:n]
}

func newTestDriver(t *testing.T, n int, opts ...Option) (*Driver, *memRecorder) {
	t.Helper()
	rec := &memRecorder{}
	opts = append([]Option{WithClock(stepClock())}, opts...)
	d := NewDriver(NewScheduleSource(testSchedule(t, n)), rec, rand.New(rand.NewPCG(1, 1)), opts...)
	return d, rec
}

func values(evs []events.Event) []int {
	var out []int
	for _, e := range evs {
		if e.Value != nil {
			out = append(out, *e.Value)
		}
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDriver_FullTrial(t *testing.T) {
	d, rec := newTestDriver(t, 2)

	s, err := d.StartTrial()
	if err != nil {
		t.Fatalf("StartTrial() error = %v", err)
	}
	out, err := d.Sample(payoff.SideLeft, 0.5)
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if !s.Left.Contains(out) {
		t.Errorf("sampled %d, not possible on left side of %v", out, s)
	}
	if _, err := d.Sample(payoff.SideRight, 0.4); err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if err := d.Stop(0.3); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	final, err := d.FinalChoice(payoff.SideRight, 0.7)
	if err != nil {
		t.Fatalf("FinalChoice() error = %v", err)
	}
	if !s.Right.Contains(final) {
		t.Errorf("final outcome %d not possible on right side of %v", final, s)
	}

	if d.Trial() != 1 || d.Phase() != PhaseIdle {
		t.Errorf("after trial: Trial() = %d, Phase() = %s", d.Trial(), d.Phase())
	}

	want := []int{
		events.ValueNewTrial,
		events.ValueLeftChoice, events.ValueShowOutcomeLeft,
		events.ValueRightChoice, events.ValueShowOutcomeRight,
		events.ValueFinalChoice,
		events.ValueRightFinalChoice, events.ValueShowFinalOutcomeRight,
	}
	if got := values(rec.events); !equalInts(got, want) {
		t.Errorf("values = %v, want %v", got, want)
	}

	if rec.events[0].Setting == nil || rec.events[0].Setting.ID != s.ID {
		t.Errorf("first event should carry setting %d", s.ID)
	}
	for i, e := range rec.events {
		if want := float64(i + 1); e.Onset != want {
			t.Errorf("event %d onset = %v, want %v", i, e.Onset, want)
		}
		if !e.TrialIs(0) {
			t.Errorf("event %d not in trial 0", i)
		}
	}
	if got := events.TotalFinalPoints(rec.events); got != final {
		t.Errorf("TotalFinalPoints() = %d, want %d", got, final)
	}
}

func TestDriver_PrematureStop(t *testing.T) {
	d, rec := newTestDriver(t, 1)

	if _, err := d.StartTrial(); err != nil {
		t.Fatal(err)
	}
	err := d.Stop(0.2)
	if !errors.Is(err, ErrPrematureStop) {
		t.Fatalf("Stop() error = %v, want ErrPrematureStop", err)
	}
	if d.Trial() != 0 || d.Phase() != PhaseIdle {
		t.Errorf("after premature stop: Trial() = %d, Phase() = %s", d.Trial(), d.Phase())
	}
	last := rec.events[len(rec.events)-1]
	if !last.Reset || !last.ValueIs(events.ValueError) {
		t.Errorf("last event = %v, want reset error row", last)
	}

	// Restart and finish the same trial.
	if _, err := d.StartTrial(); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Sample(payoff.SideLeft, 0.1); err != nil {
		t.Fatal(err)
	}
	if err := d.Stop(0.1); err != nil {
		t.Fatal(err)
	}
	if _, err := d.FinalChoice(payoff.SideLeft, 0.1); err != nil {
		t.Fatal(err)
	}

	clean := events.RemoveErrorRows(rec.events)
	for _, e := range clean {
		if e.ActionType == events.ActionPrematureStop || e.Reset {
			t.Errorf("voided row survived: %v", e)
		}
	}
	if got := len(clean); got != len(rec.events)-4 {
		t.Errorf("RemoveErrorRows kept %d of %d rows, want %d", got, len(rec.events), len(rec.events)-4)
	}
}

func TestDriver_ForcedStop(t *testing.T) {
	d, rec := newTestDriver(t, 1, WithMaxSamples(2))

	if _, err := d.StartTrial(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, err := d.Sample(payoff.SideLeft, 0.1); err != nil {
			t.Fatalf("Sample() #%d error = %v", i, err)
		}
	}
	_, err := d.Sample(payoff.SideRight, 0.1)
	if !errors.Is(err, ErrForcedStop) {
		t.Fatalf("third Sample() error = %v, want ErrForcedStop", err)
	}
	if d.Phase() != PhaseChoosing {
		t.Errorf("Phase() = %s, want choosing", d.Phase())
	}
	last := rec.events[len(rec.events)-1]
	if last.ActionType != events.ActionForcedStop || !last.ValueIs(events.ValueForcedStop) {
		t.Errorf("last event = %v, want forced stop", last)
	}
	if _, err := d.FinalChoice(payoff.SideLeft, 0.1); err != nil {
		t.Errorf("FinalChoice() after forced stop error = %v", err)
	}
}

func TestDriver_WrongPhase(t *testing.T) {
	d, _ := newTestDriver(t, 1)

	if _, err := d.Sample(payoff.SideLeft, 0); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("Sample() before start error = %v, want ErrWrongPhase", err)
	}
	if _, err := d.FinalChoice(payoff.SideLeft, 0); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("FinalChoice() before start error = %v, want ErrWrongPhase", err)
	}
	if _, err := d.StartTrial(); err != nil {
		t.Fatal(err)
	}
	if _, err := d.StartTrial(); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("StartTrial() twice error = %v, want ErrWrongPhase", err)
	}
	if _, err := d.FinalChoice(payoff.SideLeft, 0); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("FinalChoice() while sampling error = %v, want ErrWrongPhase", err)
	}
}

func TestDriver_ScheduleExhausted(t *testing.T) {
	d, _ := newTestDriver(t, 1)
	agent := &RandomAgent{Rng: rand.New(rand.NewPCG(2, 2)), StopProb: 0.5}

	if _, err := Run(d, agent, 2); err == nil {
		t.Error("Run() past end of schedule should fail")
	}
}

func TestDriver_ReplayRejectsImpossibleOutcome(t *testing.T) {
	d, _ := newTestDriver(t, 1)
	s, err := d.StartTrial()
	if err != nil {
		t.Fatal(err)
	}

	impossible := 0
	for v := 1; v <= 9; v++ {
		if !s.Left.Contains(v) {
			impossible = v
			break
		}
	}
	if err := d.Replay(payoff.SideLeft, impossible, 0.1); err == nil {
		t.Errorf("Replay(%d) on %v should fail", impossible, s)
	}
	if d.Samples() != 0 {
		t.Errorf("rejected replay counted as sample")
	}
}

package balance

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/nvandessel/sampling-paradigm/internal/events"
	"github.com/nvandessel/sampling-paradigm/internal/payoff"
)

// Tracker balances online: it counts the outcomes a participant has actually
// seen per stimulus class and picks the next setting so that it shows the
// least seen class.
type Tracker struct {
	seen Coverage
}

// NewTracker returns a Tracker with no observations.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Observe records that outcome was shown on side.
func (t *Tracker) Observe(side payoff.Side, outcome int) error {
	i := Class{Magnitude: outcome, Side: side}.Index()
	if i < 0 {
		return fmt.Errorf("outcome %d on side %d is not a stimulus class", outcome, int(side))
	}
	t.seen[i]++
	return nil
}

// ObserveEvents records every displayed sampling outcome in an events log.
func (t *Tracker) ObserveEvents(evs []events.Event) error {
	for _, e := range evs {
		if e.Value == nil || e.Outcome == nil {
			continue
		}
		var side payoff.Side
		switch *e.Value {
		case events.ValueShowOutcomeLeft:
			side = payoff.SideLeft
		case events.ValueShowOutcomeRight:
			side = payoff.SideRight
		default:
			continue
		}
		if err := t.Observe(side, *e.Outcome); err != nil {
			return err
		}
	}
	return nil
}

// Seen returns the observation counts.
func (t *Tracker) Seen() Coverage {
	return t.seen
}

// Priority returns all classes ordered from least to most seen. Ties keep
// canonical class order.
func (t *Tracker) Priority() []Class {
	classes := Classes()
	sort.SliceStable(classes, func(i, j int) bool {
		return t.seen[classes[i].Index()] < t.seen[classes[j].Index()]
	})
	return classes
}

// Pick returns the position in pool of a setting showing the least seen class
// that any setting in pool can show, chosen uniformly among those candidates.
// It fails with ErrInfeasible when pool is empty.
func (t *Tracker) Pick(pool []payoff.Setting, rng *rand.Rand) (int, Class, error) {
	for _, class := range t.Priority() {
		var candidates []int
		for i, s := range pool {
			if class.Shown(s) {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) > 0 {
			return candidates[rng.IntN(len(candidates))], class, nil
		}
	}
	return -1, Class{}, fmt.Errorf("%w: no setting in a pool of %d shows any stimulus class", ErrInfeasible, len(pool))
}

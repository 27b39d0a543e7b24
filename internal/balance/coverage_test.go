package balance

import (
	"math"
	"testing"

	"github.com/nvandessel/sampling-paradigm/internal/payoff"
)

func TestCoverageOf(t *testing.T) {
	trials := []payoff.Setting{
		{
			Left:  payoff.Distribution{Mag1: 1, Mag2: 9, Prob1: 0.1, Prob2: 0.9},
			Right: payoff.Distribution{Mag1: 4, Mag2: 6, Prob1: 0.5, Prob2: 0.5},
		},
		{
			Left:  payoff.Distribution{Mag1: 1, Mag2: 8, Prob1: 0.5, Prob2: 0.5},
			Right: payoff.Distribution{Mag1: 3, Mag2: 6, Prob1: 0.3, Prob2: 0.7},
		},
	}

	all := CoverageOf(trials, -1)
	if got := all.Count(Class{1, payoff.SideLeft}); got != 2 {
		t.Errorf("left:1 = %d, want 2", got)
	}
	if got := all.Count(Class{6, payoff.SideRight}); got != 2 {
		t.Errorf("right:6 = %d, want 2", got)
	}
	if got := all.Count(Class{1, payoff.SideRight}); got != 0 {
		t.Errorf("right:1 = %d, want 0", got)
	}

	cut := CoverageOf(trials, 0.2)
	if got := cut.Count(Class{1, payoff.SideLeft}); got != 1 {
		t.Errorf("left:1 above 0.2 = %d, want 1", got)
	}

	if got := all.Map()["left:9"]; got != 1 {
		t.Errorf(`Map()["left:9"] = %d, want 1`, got)
	}
	if got := all.Count(Class{0, payoff.SideLeft}); got != 0 {
		t.Errorf("invalid class count = %d, want 0", got)
	}
}

func TestCoverage_Stats(t *testing.T) {
	var c Coverage
	for i := range c {
		c[i] = 2
	}
	c[0] = 4
	c[1] = 0

	st := c.Stats()
	if st.Min != 0 || st.Max != 4 {
		t.Errorf("Min, Max = %d, %d, want 0, 4", st.Min, st.Max)
	}
	if math.Abs(st.Mean-2) > 1e-12 {
		t.Errorf("Mean = %v, want 2", st.Mean)
	}
	if st.StdDev <= 0 {
		t.Errorf("StdDev = %v, want > 0", st.StdDev)
	}
}

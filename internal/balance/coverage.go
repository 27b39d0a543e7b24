package balance

import (
	"github.com/nvandessel/sampling-paradigm/internal/constants"
	"github.com/nvandessel/sampling-paradigm/internal/payoff"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Coverage counts, per stimulus class in canonical order, how many trials
// show that class.
type Coverage [constants.NumStimulusClasses]int

// CoverageStats summarizes a Coverage.
type CoverageStats struct {
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// CoverageOf counts class appearances across trials. A setting counts for a
// class when it shows the class magnitude on the class side with a
// probability above cutoff; a negative cutoff counts every appearance.
func CoverageOf(trials []payoff.Setting, cutoff float64) Coverage {
	var c Coverage
	classes := Classes()
	for _, s := range trials {
		for i, class := range classes {
			if class.Eligible(s, cutoff) {
				c[i]++
			}
		}
	}
	return c
}

// Count returns the count for one class, or 0 for an invalid class.
func (c Coverage) Count(class Class) int {
	i := class.Index()
	if i < 0 {
		return 0
	}
	return c[i]
}

// Stats returns min, max, mean and standard deviation of the class counts.
func (c Coverage) Stats() CoverageStats {
	counts := make([]float64, len(c))
	for i, n := range c {
		counts[i] = float64(n)
	}
	return CoverageStats{
		Min:    int(floats.Min(counts)),
		Max:    int(floats.Max(counts)),
		Mean:   stat.Mean(counts, nil),
		StdDev: stat.StdDev(counts, nil),
	}
}

// Map returns the counts keyed by class string, e.g. "left:3".
func (c Coverage) Map() map[string]int {
	m := make(map[string]int, len(c))
	for i, class := range Classes() {
		m[class.String()] = c[i]
	}
	return m
}

package payoff

import (
	"fmt"
	"math"

	"github.com/nvandessel/sampling-paradigm/internal/constants"
)

// SingleDistributions returns every two-outcome distribution built from an
// unordered pair of distinct magnitudes and a probability/complement pair.
// The order is magnitude pair major (1-2, 1-3, ..., 8-9), probability minor
// (0.1/0.9, 0.2/0.8, ..., 0.9/0.1): 36 * 9 = 324 rows.
func SingleDistributions() []Distribution {
	n := constants.MaxMagnitude - constants.MinMagnitude + 1
	out := make([]Distribution, 0, n*(n-1)/2*(constants.ProbabilitySteps-1))
	for m1 := constants.MinMagnitude; m1 <= constants.MaxMagnitude; m1++ {
		for m2 := m1 + 1; m2 <= constants.MaxMagnitude; m2++ {
			for k := 1; k < constants.ProbabilitySteps; k++ {
				out = append(out, Distribution{
					Mag1:  m1,
					Mag2:  m2,
					Prob1: tenth(k),
					Prob2: tenth(constants.ProbabilitySteps - k),
				})
			}
		}
	}
	return out
}

// RawSettingCount is the size of the unfiltered two-sided enumeration (324^2).
func RawSettingCount() int {
	n := len(SingleDistributions())
	return n * n
}

// Enumerate returns every setting whose two distributions differ in expected
// value by exactly evDiff (both rounded to RoundDecimals), whose four
// magnitudes are pairwise distinct, and where neither side dominates the
// other on magnitudes alone.
//
// Two-sided settings are formed by rotation: for shift i, the left side is the
// single distribution list rotated by i and the right side is the unrotated
// list, paired row by row. The setting ID is i*324+j, its position in that
// raw enumeration. The result is deterministic and may be empty.
func Enumerate(evDiff float64) []Setting {
	target := Round(evDiff)
	if math.IsNaN(target) || target < 0 {
		return nil
	}

	single := SingleDistributions()
	n := len(single)

	var pool []Setting
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			s := Setting{
				ID:    i*n + j,
				Left:  single[(j-i+n)%n],
				Right: single[j],
			}
			if s.EVDiff() != target {
				continue
			}
			if !s.Distinct() {
				continue
			}
			if s.Dominated() {
				continue
			}
			pool = append(pool, s)
		}
	}
	return pool
}

// Lookup returns the settings in pool keyed by ID.
func Lookup(pool []Setting) map[int]Setting {
	m := make(map[int]Setting, len(pool))
	for _, s := range pool {
		m[s.ID] = s
	}
	return m
}

// ByID rebuilds the raw enumeration row with the given ID without filtering.
// The row may fail the pool filters; check with EVDiff, Distinct and Dominated.
func ByID(id int) (Setting, error) {
	single := SingleDistributions()
	n := len(single)
	if id < 0 || id >= n*n {
		return Setting{}, fmt.Errorf("setting ID %d out of range [0, %d)", id, n*n)
	}
	i, j := id/n, id%n
	return Setting{ID: id, Left: single[(j-i+n)%n], Right: single[j]}, nil
}

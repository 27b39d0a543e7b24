package payoff

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/nvandessel/sampling-paradigm/internal/constants"
)

// RewardLists maps each side to a list of RewardListLen outcome magnitudes.
// A magnitude's frequency in the list is its probability.
type RewardLists [constants.NumSides][]int

// ToRewardLists converts a setting into its reward lists by replicating each
// magnitude round(probability*RewardListLen) times.
func ToRewardLists(s Setting) (RewardLists, error) {
	var r RewardLists
	for _, side := range Sides {
		d := s.Side(side)
		n1, err := replicationCount(d.Prob1)
		if err != nil {
			return RewardLists{}, fmt.Errorf("%s outcome %d: %w", side, d.Mag1, err)
		}
		n2, err := replicationCount(d.Prob2)
		if err != nil {
			return RewardLists{}, fmt.Errorf("%s outcome %d: %w", side, d.Mag2, err)
		}
		if n1+n2 != constants.RewardListLen {
			return RewardLists{}, fmt.Errorf("%s replication counts %d+%d do not sum to %d",
				side, n1, n2, constants.RewardListLen)
		}

		list := make([]int, 0, constants.RewardListLen)
		for i := 0; i < n1; i++ {
			list = append(list, d.Mag1)
		}
		for i := 0; i < n2; i++ {
			list = append(list, d.Mag2)
		}
		r[side] = list
	}
	return r, nil
}

// replicationCount returns p*RewardListLen, which must be a whole number.
func replicationCount(p float64) (int, error) {
	c := p * constants.RewardListLen
	rounded := math.Round(c)
	if math.Abs(c-rounded) > 1e-9 {
		return 0, fmt.Errorf("probability %v does not give a whole replication count (%v)", p, c)
	}
	return int(rounded), nil
}

// FromRewardLists re-derives a setting from reward lists. Values keep their
// first-appearance order. Each side must hold exactly two distinct values.
// The returned setting has ID UnknownID.
func FromRewardLists(r RewardLists) (Setting, error) {
	var d [constants.NumSides]Distribution
	for _, side := range Sides {
		values, probs := r.Probabilities(side)
		if len(values) != 2 {
			return Setting{}, fmt.Errorf("%s list has %d distinct values, want 2", side, len(values))
		}
		d[side] = Distribution{
			Mag1:  values[0],
			Mag2:  values[1],
			Prob1: probs[0],
			Prob2: probs[1],
		}
	}
	s := Setting{ID: UnknownID, Left: d[SideLeft], Right: d[SideRight]}
	if err := s.Left.Validate(); err != nil {
		return Setting{}, fmt.Errorf("left: %w", err)
	}
	if err := s.Right.Validate(); err != nil {
		return Setting{}, fmt.Errorf("right: %w", err)
	}
	return s, nil
}

// Probabilities returns the distinct values of one side's list in
// first-appearance order, with their empirical probabilities (count/len).
func (r RewardLists) Probabilities(side Side) ([]int, []float64) {
	list := r[side]
	if len(list) == 0 {
		return nil, nil
	}
	counts := make(map[int]int)
	var values []int
	for _, v := range list {
		if counts[v] == 0 {
			values = append(values, v)
		}
		counts[v]++
	}
	probs := make([]float64, len(values))
	for i, v := range values {
		probs[i] = Round(float64(counts[v]) / float64(len(list)))
	}
	return values, probs
}

// Draw returns a uniformly drawn outcome from one side's list, with replacement.
func (r RewardLists) Draw(side Side, rng *rand.Rand) (int, error) {
	if !side.Valid() {
		return 0, fmt.Errorf("invalid side %d", int(side))
	}
	list := r[side]
	if len(list) == 0 {
		return 0, fmt.Errorf("%s reward list is empty", side)
	}
	return list[rng.IntN(len(list))], nil
}

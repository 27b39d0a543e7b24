// Package payoff defines two-option payoff settings, enumerates the pool of
// usable settings for a target expected value difference, and converts settings
// into the reward lists a trial draws outcomes from.
package payoff

import (
	"fmt"
	"math"

	"github.com/nvandessel/sampling-paradigm/internal/constants"
)

// UnknownID marks a setting that was not produced by Enumerate, for example one
// recovered from an events log.
const UnknownID = -1

// Side identifies one of the two options of a trial.
type Side int

const (
	SideLeft  Side = 0
	SideRight Side = 1
)

// Sides lists both sides in canonical order.
var Sides = [constants.NumSides]Side{SideLeft, SideRight}

// Valid returns true if the side is left or right.
func (s Side) Valid() bool {
	return s == SideLeft || s == SideRight
}

// String returns "left" or "right".
func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	}
	return fmt.Sprintf("side(%d)", int(s))
}

// ParseSide maps "left"/"right" (or "0"/"1") to a Side.
func ParseSide(v string) (Side, error) {
	switch v {
	case "left", "l", "0":
		return SideLeft, nil
	case "right", "r", "1":
		return SideRight, nil
	}
	return 0, fmt.Errorf("invalid side %q (valid: left, right)", v)
}

// Distribution is a single option with exactly two possible outcomes.
type Distribution struct {
	Mag1  int     `json:"mag1" yaml:"mag1"`
	Mag2  int     `json:"mag2" yaml:"mag2"`
	Prob1 float64 `json:"prob1" yaml:"prob1"`
	Prob2 float64 `json:"prob2" yaml:"prob2"`
}

// EV returns the expected value, rounded to RoundDecimals.
func (d Distribution) EV() float64 {
	return Round(float64(d.Mag1)*d.Prob1 + float64(d.Mag2)*d.Prob2)
}

// ProbabilityOf returns the probability paired with magnitude mag.
// The second return value is false when mag is not an outcome of d.
func (d Distribution) ProbabilityOf(mag int) (float64, bool) {
	switch mag {
	case d.Mag1:
		return d.Prob1, true
	case d.Mag2:
		return d.Prob2, true
	}
	return 0, false
}

// Contains reports whether mag is one of the distribution's outcomes.
func (d Distribution) Contains(mag int) bool {
	return d.Mag1 == mag || d.Mag2 == mag
}

func (d Distribution) min() int {
	if d.Mag1 < d.Mag2 {
		return d.Mag1
	}
	return d.Mag2
}

func (d Distribution) max() int {
	if d.Mag1 > d.Mag2 {
		return d.Mag1
	}
	return d.Mag2
}

// Validate checks magnitude range and probability invariants.
func (d Distribution) Validate() error {
	for _, m := range []int{d.Mag1, d.Mag2} {
		if m < constants.MinMagnitude || m > constants.MaxMagnitude {
			return fmt.Errorf("magnitude %d out of range [%d, %d]", m, constants.MinMagnitude, constants.MaxMagnitude)
		}
	}
	for _, p := range []float64{d.Prob1, d.Prob2} {
		if p <= 0 || p >= 1 {
			return fmt.Errorf("probability %v must be in (0, 1)", p)
		}
		if !isTenth(p) {
			return fmt.Errorf("probability %v is not a multiple of 0.1", p)
		}
	}
	if Round(d.Prob1+d.Prob2) != 1 {
		return fmt.Errorf("probabilities %v and %v do not sum to 1", d.Prob1, d.Prob2)
	}
	return nil
}

// Setting is one row of the payoff settings pool: a left and a right
// distribution. ID is the row's position in the raw enumeration and is the
// identity used when drawing settings without replacement.
type Setting struct {
	ID    int          `json:"id" yaml:"id"`
	Left  Distribution `json:"left" yaml:"left"`
	Right Distribution `json:"right" yaml:"right"`
}

// RowColumnNames names the columns of Row, in order.
var RowColumnNames = [constants.SettingColumns]string{
	"mag_left_1", "mag_left_2", "prob_left_1", "prob_left_2",
	"mag_right_1", "mag_right_2", "prob_right_1", "prob_right_2",
}

// LogColumnNames names the columns of LogColumns, in order. Persisted event
// logs depend on this ordering.
var LogColumnNames = [constants.SettingColumns]string{
	"mag0_1", "prob0_1", "mag0_2", "prob0_2",
	"mag1_1", "prob1_1", "mag1_2", "prob1_2",
}

// Side returns the distribution shown on the given side.
func (s Setting) Side(side Side) Distribution {
	if side == SideRight {
		return s.Right
	}
	return s.Left
}

// Row returns the flat 8-column representation:
// mag_left_1, mag_left_2, prob_left_1, prob_left_2, mag_right_1, mag_right_2, prob_right_1, prob_right_2.
func (s Setting) Row() [constants.SettingColumns]float64 {
	return [constants.SettingColumns]float64{
		float64(s.Left.Mag1), float64(s.Left.Mag2), s.Left.Prob1, s.Left.Prob2,
		float64(s.Right.Mag1), float64(s.Right.Mag2), s.Right.Prob1, s.Right.Prob2,
	}
}

// FromRow builds a setting from its flat 8-column representation.
func FromRow(id int, row [constants.SettingColumns]float64) (Setting, error) {
	left, err := distributionFrom(row[0], row[1], row[2], row[3])
	if err != nil {
		return Setting{}, fmt.Errorf("left: %w", err)
	}
	right, err := distributionFrom(row[4], row[5], row[6], row[7])
	if err != nil {
		return Setting{}, fmt.Errorf("right: %w", err)
	}
	return Setting{ID: id, Left: left, Right: right}, nil
}

// LogColumns returns the setting in the data logger's column order:
// mag0_1, prob0_1, mag0_2, prob0_2, mag1_1, prob1_1, mag1_2, prob1_2.
func (s Setting) LogColumns() [constants.SettingColumns]float64 {
	return [constants.SettingColumns]float64{
		float64(s.Left.Mag1), s.Left.Prob1, float64(s.Left.Mag2), s.Left.Prob2,
		float64(s.Right.Mag1), s.Right.Prob1, float64(s.Right.Mag2), s.Right.Prob2,
	}
}

// FromLogColumns rebuilds a setting from the data logger's column order.
// The returned setting has ID UnknownID.
func FromLogColumns(cols [constants.SettingColumns]float64) (Setting, error) {
	return FromRow(UnknownID, [constants.SettingColumns]float64{
		cols[0], cols[2], cols[1], cols[3],
		cols[4], cols[6], cols[5], cols[7],
	})
}

// Magnitudes returns the four magnitudes in row order.
func (s Setting) Magnitudes() [4]int {
	return [4]int{s.Left.Mag1, s.Left.Mag2, s.Right.Mag1, s.Right.Mag2}
}

// EVDiff returns the absolute expected value difference between both sides.
func (s Setting) EVDiff() float64 {
	return Round(math.Abs(s.Left.EV() - s.Right.EV()))
}

// Distinct reports whether all four magnitudes are pairwise distinct.
func (s Setting) Distinct() bool {
	m := s.Magnitudes()
	for i := 0; i < len(m); i++ {
		for j := i + 1; j < len(m); j++ {
			if m[i] == m[j] {
				return false
			}
		}
	}
	return true
}

// Dominated reports whether both outcomes of one side are strictly greater
// than both outcomes of the other side. Only magnitudes are compared;
// probabilities play no role.
func (s Setting) Dominated() bool {
	return s.Left.min() > s.Right.max() || s.Right.min() > s.Left.max()
}

// Validate checks the invariants of a usable setting.
func (s Setting) Validate() error {
	if err := s.Left.Validate(); err != nil {
		return fmt.Errorf("left: %w", err)
	}
	if err := s.Right.Validate(); err != nil {
		return fmt.Errorf("right: %w", err)
	}
	if !s.Distinct() {
		return fmt.Errorf("magnitudes %v are not pairwise distinct", s.Magnitudes())
	}
	return nil
}

// SameValues reports whether two settings hold the same rounded values,
// ignoring IDs.
func (s Setting) SameValues(o Setting) bool {
	a, b := s.Row(), o.Row()
	for i := range a {
		if Round(a[i]) != Round(b[i]) {
			return false
		}
	}
	return true
}

// String renders the setting compactly, e.g. "#12 L(3:0.5,4:0.5) R(1:0.5,8:0.5)".
func (s Setting) String() string {
	return fmt.Sprintf("#%d L(%d:%g,%d:%g) R(%d:%g,%d:%g)", s.ID,
		s.Left.Mag1, s.Left.Prob1, s.Left.Mag2, s.Left.Prob2,
		s.Right.Mag1, s.Right.Prob1, s.Right.Mag2, s.Right.Prob2)
}

// Round rounds x to RoundDecimals decimal places.
func Round(x float64) float64 {
	scale := math.Pow10(constants.RoundDecimals)
	return math.Round(x*scale) / scale
}

func tenth(k int) float64 {
	return Round(float64(k) / constants.ProbabilitySteps)
}

func isTenth(p float64) bool {
	c := p * constants.ProbabilitySteps
	return math.Abs(c-math.Round(c)) < 1e-9
}

func distributionFrom(m1, m2, p1, p2 float64) (Distribution, error) {
	for _, m := range []float64{m1, m2} {
		if m != math.Trunc(m) {
			return Distribution{}, fmt.Errorf("magnitude %v is not an integer", m)
		}
	}
	d := Distribution{
		Mag1:  int(m1),
		Mag2:  int(m2),
		Prob1: Round(p1),
		Prob2: Round(p2),
	}
	if err := d.Validate(); err != nil {
		return Distribution{}, err
	}
	return d, nil
}

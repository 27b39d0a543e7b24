// Package balance assigns payoff settings to trials so that every stimulus
// class (an outcome magnitude shown on a given side) is covered a controlled
// number of times.
package balance

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nvandessel/sampling-paradigm/internal/constants"
	"github.com/nvandessel/sampling-paradigm/internal/payoff"
)

// Class is a stimulus class: a magnitude appearing on a side.
type Class struct {
	Magnitude int         `json:"magnitude"`
	Side      payoff.Side `json:"side"`
}

// Classes returns all stimulus classes in canonical order: magnitudes 1..9 on
// the left, then 1..9 on the right.
func Classes() []Class {
	out := make([]Class, 0, constants.NumStimulusClasses)
	for _, side := range payoff.Sides {
		for m := constants.MinMagnitude; m <= constants.MaxMagnitude; m++ {
			out = append(out, Class{Magnitude: m, Side: side})
		}
	}
	return out
}

// Index returns the class position in canonical order, or -1 if invalid.
func (c Class) Index() int {
	if !c.Side.Valid() || c.Magnitude < constants.MinMagnitude || c.Magnitude > constants.MaxMagnitude {
		return -1
	}
	perSide := constants.MaxMagnitude - constants.MinMagnitude + 1
	return int(c.Side)*perSide + (c.Magnitude - constants.MinMagnitude)
}

// Probability returns the probability paired with the class magnitude on the
// class side of s. The second value is false when s does not show the class.
func (c Class) Probability(s payoff.Setting) (float64, bool) {
	return s.Side(c.Side).ProbabilityOf(c.Magnitude)
}

// Shown reports whether s shows the class magnitude on the class side.
func (c Class) Shown(s payoff.Setting) bool {
	return s.Side(c.Side).Contains(c.Magnitude)
}

// Eligible reports whether s shows the class with a probability above cutoff.
// A negative cutoff only requires the class to be shown.
func (c Class) Eligible(s payoff.Setting, cutoff float64) bool {
	p, ok := c.Probability(s)
	if !ok {
		return false
	}
	return cutoff < 0 || p > cutoff
}

// String renders the class as "side:magnitude", e.g. "left:3".
func (c Class) String() string {
	return fmt.Sprintf("%s:%d", c.Side, c.Magnitude)
}

// ParseClass parses the String form of a class.
func ParseClass(v string) (Class, error) {
	sideStr, magStr, ok := strings.Cut(v, ":")
	if !ok {
		return Class{}, fmt.Errorf("invalid class %q (want side:magnitude)", v)
	}
	side, err := payoff.ParseSide(sideStr)
	if err != nil {
		return Class{}, err
	}
	mag, err := strconv.Atoi(magStr)
	if err != nil {
		return Class{}, fmt.Errorf("invalid class magnitude %q: %w", magStr, err)
	}
	c := Class{Magnitude: mag, Side: side}
	if c.Index() < 0 {
		return Class{}, fmt.Errorf("class %q out of range", v)
	}
	return c, nil
}

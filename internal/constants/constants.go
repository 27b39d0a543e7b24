// Package constants provides named constants used throughout the sampling-paradigm codebase.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Payoff setting construction constants
const (
	// MinMagnitude is the smallest outcome magnitude a distribution may yield.
	MinMagnitude = 1

	// MaxMagnitude is the largest outcome magnitude a distribution may yield.
	MaxMagnitude = 9

	// ProbabilitySteps is the number of tenths a probability is built from.
	// Probabilities are k/ProbabilitySteps for k in [1, ProbabilitySteps-1].
	ProbabilitySteps = 10

	// RoundDecimals is the decimal precision applied before every EV comparison
	// and to every stored setting value.
	RoundDecimals = 14

	// SettingColumns is the number of values in a flat payoff setting row.
	SettingColumns = 8
)

// Balancing constants
const (
	// NumSides is the number of options offered per trial (left and right).
	NumSides = 2

	// NumStimulusClasses is the number of (magnitude, side) classes tracked
	// by the balanced sampler: 9 magnitudes times 2 sides.
	NumStimulusClasses = (MaxMagnitude - MinMagnitude + 1) * NumSides

	// QuotaSafetyFactor is the multiple of the per-class quota that a class's
	// candidate pool must reach before drawing from it.
	QuotaSafetyFactor = 4

	// CutoffDisabled is a cutoff probability that keeps every candidate.
	// Any negative cutoff disables the probability filter.
	CutoffDisabled = -1.0
)

// Reward list constants
const (
	// RewardListLen is the number of entries in one side's reward list.
	// Each magnitude appears round(probability*RewardListLen) times.
	RewardListLen = 10
)

// Experiment defaults
const (
	// DefaultEVDiff is the expected value difference used when none is configured.
	DefaultEVDiff = 0.9

	// DefaultNTrials is the default number of trials per schedule.
	DefaultNTrials = 18

	// DefaultMaxSamples is the maximum number of samples allowed per trial.
	DefaultMaxSamples = 12

	// DefaultExchangeRate converts final choice points into currency.
	DefaultExchangeRate = 0.005
)

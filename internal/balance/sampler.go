package balance

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/nvandessel/sampling-paradigm/internal/constants"
	"github.com/nvandessel/sampling-paradigm/internal/logging"
	"github.com/nvandessel/sampling-paradigm/internal/payoff"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// Options configures one balanced draw.
type Options struct {
	// NTrials is the number of trials, one setting each.
	NTrials int

	// Cutoff is the probability a class magnitude must exceed for a setting
	// to count toward that class's quota. Negative disables the filter.
	Cutoff float64

	// Seed makes the draw reproducible. When nil a seed is drawn and
	// reported in Result.Seed.
	Seed *uint64
}

// Result is a balanced schedule.
type Result struct {
	// Trials holds one setting per trial, in presentation order.
	Trials []payoff.Setting

	// Seed is the seed that reproduces Trials for the same pool and options.
	Seed uint64

	// PerClass is the quota drawn for every stimulus class.
	PerClass int

	// Remainder is the number of trials filled freely after the quotas.
	Remainder int
}

// IDs returns the setting IDs in trial order.
func (r *Result) IDs() []int {
	ids := make([]int, len(r.Trials))
	for i, s := range r.Trials {
		ids[i] = s.ID
	}
	return ids
}

// Sampler draws balanced schedules from a settings pool.
type Sampler struct {
	logger    *slog.Logger
	decisions *logging.DecisionLogger
}

// NewSampler creates a Sampler. Both arguments may be nil.
func NewSampler(logger *slog.Logger, decisions *logging.DecisionLogger) *Sampler {
	return &Sampler{
		logger:    logging.OrDiscard(logger),
		decisions: decisions,
	}
}

// NewSource returns the random source used for a given seed.
func NewSource(seed uint64) *rand.PCG {
	return rand.NewPCG(seed, seed)
}

// SampleBalanced draws nTrials settings from pool without replacement so that
// every stimulus class is shown at least nTrials/18 times. See Sampler.Sample.
func SampleBalanced(nTrials int, pool []payoff.Setting, cutoff float64, seed *uint64) ([]payoff.Setting, error) {
	res, err := NewSampler(nil, nil).Sample(pool, Options{NTrials: nTrials, Cutoff: cutoff, Seed: seed})
	if err != nil {
		return nil, err
	}
	return res.Trials, nil
}

// Sample draws a balanced schedule from pool. pool is not modified.
//
// For each stimulus class in canonical order it draws the per-class quota
// (NTrials/18) from the not yet used settings that show the class with a
// probability above the cutoff. A class with fewer than QuotaSafetyFactor
// times the quota in candidates fails with a *QuotaError. The remaining
// NTrials%18 trials are filled from whatever settings are left, and the whole
// schedule is shuffled. Every random step uses one generator seeded from
// opts.Seed, so the same pool, options and seed always give the same result.
func (s *Sampler) Sample(pool []payoff.Setting, opts Options) (*Result, error) {
	if opts.NTrials < 0 {
		return nil, fmt.Errorf("%w: trial count %d is negative", ErrInfeasible, opts.NTrials)
	}

	seed := rand.Uint64()
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	src := NewSource(seed)
	rng := rand.New(src)

	// Settings are located by ID, never by value.
	position := make(map[int]int, len(pool))
	for i, setting := range pool {
		if _, dup := position[setting.ID]; dup {
			return nil, fmt.Errorf("%w: setting ID %d appears twice in the pool", ErrInvariant, setting.ID)
		}
		position[setting.ID] = i
	}

	classes := Classes()
	perClass := opts.NTrials / len(classes)
	remainder := opts.NTrials - perClass*len(classes)

	s.logger.Debug("balanced draw",
		"trials", opts.NTrials, "pool", len(pool), "per_class", perClass,
		"remainder", remainder, "cutoff", opts.Cutoff, "seed", seed)

	used := make([]bool, len(pool))
	slots := make([]int, opts.NTrials)
	for i := range slots {
		slots[i] = -1
	}

	take := func(setting payoff.Setting, slot int) error {
		pos, ok := position[setting.ID]
		if !ok {
			return fmt.Errorf("%w: drawn setting %d not found in pool", ErrInvariant, setting.ID)
		}
		if used[pos] {
			return fmt.Errorf("%w: setting %d drawn twice", ErrInvariant, setting.ID)
		}
		if slots[slot] != -1 {
			return fmt.Errorf("%w: trial slot %d assigned twice", ErrInvariant, slot)
		}
		used[pos] = true
		slots[slot] = pos
		return nil
	}

	required := perClass * constants.QuotaSafetyFactor
	for ci, class := range classes {
		var candidates []payoff.Setting
		for i, setting := range pool {
			if !used[i] && class.Eligible(setting, opts.Cutoff) {
				candidates = append(candidates, setting)
			}
		}

		s.logger.Log(context.Background(), logging.LevelTrace, "class candidates",
			"class", class.String(), "candidates", len(candidates))

		if len(candidates) < required {
			return nil, &QuotaError{
				Class:      class,
				Candidates: len(candidates),
				Required:   required,
				Cutoff:     opts.Cutoff,
			}
		}
		if perClass == 0 {
			continue
		}

		picks := make([]int, perClass)
		sampleuv.WithoutReplacement(picks, len(candidates), src)

		drawn := make([]int, 0, perClass)
		for j, k := range picks {
			if err := take(candidates[k], ci*perClass+j); err != nil {
				return nil, err
			}
			drawn = append(drawn, candidates[k].ID)
		}

		s.decisions.Log("class_draw", map[string]any{
			"class":      class.String(),
			"candidates": len(candidates),
			"drawn_ids":  drawn,
			"seed":       seed,
		})
	}

	if remainder > 0 {
		var rest []payoff.Setting
		for i, setting := range pool {
			if !used[i] {
				rest = append(rest, setting)
			}
		}
		if len(rest) < remainder {
			return nil, fmt.Errorf("%w: %d remaining trials but only %d unused settings",
				ErrInfeasible, remainder, len(rest))
		}

		picks := make([]int, remainder)
		sampleuv.WithoutReplacement(picks, len(rest), src)

		drawn := make([]int, 0, remainder)
		base := perClass * len(classes)
		for j, k := range picks {
			if err := take(rest[k], base+j); err != nil {
				return nil, err
			}
			drawn = append(drawn, rest[k].ID)
		}

		s.decisions.Log("remainder_draw", map[string]any{
			"available": len(rest),
			"drawn_ids": drawn,
			"seed":      seed,
		})
	}

	if err := checkSlots(slots); err != nil {
		return nil, err
	}

	order := rng.Perm(len(slots))
	trials := make([]payoff.Setting, len(slots))
	for i, j := range order {
		trials[i] = pool[slots[j]]
	}

	s.logger.Info("balanced schedule drawn", "trials", len(trials), "seed", seed)

	return &Result{
		Trials:    trials,
		Seed:      seed,
		PerClass:  perClass,
		Remainder: remainder,
	}, nil
}

// checkSlots verifies every trial slot holds exactly one distinct pool position.
func checkSlots(slots []int) error {
	seen := make(map[int]int, len(slots))
	for slot, pos := range slots {
		if pos < 0 {
			return fmt.Errorf("%w: trial slot %d left empty", ErrInvariant, slot)
		}
		if prev, dup := seen[pos]; dup {
			return fmt.Errorf("%w: slots %d and %d share pool row %d", ErrInvariant, prev, slot, pos)
		}
		seen[pos] = slot
	}
	return nil
}

package balance

import (
	"errors"
	"fmt"
)

// ErrInfeasible reports a parameter combination (pool, trial count, cutoff)
// that cannot satisfy the balancing quotas. The caller must change parameters.
var ErrInfeasible = errors.New("infeasible balancing configuration")

// ErrInvariant reports an internal consistency violation, such as a drawn
// setting that cannot be located in the pool or a setting assigned twice.
var ErrInvariant = errors.New("balancing invariant violated")

// QuotaError reports a stimulus class whose eligible candidates fall short of
// the required safety margin.
type QuotaError struct {
	Class      Class
	Candidates int
	Required   int
	Cutoff     float64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("stimulus class %s (magnitude %d, %s side): %d candidates with probability above %v, need at least %d",
		e.Class, e.Class.Magnitude, e.Class.Side, e.Candidates, e.Cutoff, e.Required)
}

// Unwrap lets errors.Is match ErrInfeasible.
func (e *QuotaError) Unwrap() error {
	return ErrInfeasible
}

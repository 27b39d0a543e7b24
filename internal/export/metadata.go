package export

import (
	"strconv"

	"github.com/nvandessel/sampling-paradigm/internal/payoff"
	"github.com/nvandessel/sampling-paradigm/internal/store"
)

// PoolMetadata describes a full enumeration export.
func PoolMetadata(evDiff float64) map[string]string {
	return map[string]string{
		"kind":    "pool",
		"ev_diff": strconv.FormatFloat(payoff.Round(evDiff), 'g', -1, 64),
	}
}

// RunMetadata describes a stored schedule export.
func RunMetadata(run *store.Run) map[string]string {
	meta := map[string]string{
		"kind":      "schedule",
		"run_id":    run.ID,
		"condition": run.Condition.String(),
		"ev_diff":   strconv.FormatFloat(run.EVDiff, 'g', -1, 64),
		"cutoff":    strconv.FormatFloat(run.Cutoff, 'g', -1, 64),
		"seed":      strconv.FormatUint(run.Seed, 10),
	}
	if run.YokedTo != "" {
		meta["yoked_to"] = run.YokedTo
	}
	return meta
}

package export

import (
	"testing"

	"github.com/nvandessel/sampling-paradigm/internal/constants"
	"github.com/nvandessel/sampling-paradigm/internal/store"
)

func TestPoolMetadata(t *testing.T) {
	meta := PoolMetadata(0.9000000001)
	if meta["kind"] != "pool" || meta["ev_diff"] != "0.9" {
		t.Errorf("PoolMetadata() = %v", meta)
	}
}

func TestRunMetadata(t *testing.T) {
	run := &store.Run{
		ID:        "abc",
		EVDiff:    0.9,
		Cutoff:    0.2,
		Seed:      42,
		Condition: constants.ConditionActive,
	}
	meta := RunMetadata(run)
	want := map[string]string{
		"kind":      "schedule",
		"run_id":    "abc",
		"condition": "active",
		"ev_diff":   "0.9",
		"cutoff":    "0.2",
		"seed":      "42",
	}
	for k, v := range want {
		if meta[k] != v {
			t.Errorf("meta[%q] = %q, want %q", k, meta[k], v)
		}
	}
	if _, ok := meta["yoked_to"]; ok {
		t.Error("active run should not carry yoked_to")
	}

	run.Condition = constants.ConditionPassive
	run.YokedTo = "def"
	if got := RunMetadata(run)["yoked_to"]; got != "def" {
		t.Errorf("yoked_to = %q, want def", got)
	}
}

package events

import (
	"fmt"
	"math"
	"strconv"

	"github.com/nvandessel/sampling-paradigm/internal/payoff"
)

// RemoveErrorRows drops every event voided by an error. A row with Reset set
// voids all earlier rows of the same trial and is dropped itself.
func RemoveErrorRows(evs []Event) []Event {
	drop := make([]bool, len(evs))
	for k, e := range evs {
		if !e.Reset {
			continue
		}
		drop[k] = true
		if e.Trial == nil {
			continue
		}
		for i := 0; i < k; i++ {
			if evs[i].TrialIs(*e.Trial) {
				drop[i] = true
			}
		}
	}

	kept := make([]Event, 0, len(evs))
	for i, e := range evs {
		if !drop[i] {
			kept = append(kept, e)
		}
	}
	return kept
}

// PayoffForTrial returns the last setting logged in a trial. Earlier settings
// of the same trial were replaced after an error.
func PayoffForTrial(evs []Event, trial int) (payoff.Setting, error) {
	for i := len(evs) - 1; i >= 0; i-- {
		e := evs[i]
		if e.TrialIs(trial) && e.Setting != nil {
			return *e.Setting, nil
		}
	}
	return payoff.Setting{}, fmt.Errorf("no payoff setting logged for trial %d", trial)
}

// NumTrials returns one more than the highest trial index in the log.
// Negative indices never raise the count.
func NumTrials(evs []Event) int {
	n := 0
	for _, e := range evs {
		if e.Trial != nil && *e.Trial+1 > n {
			n = *e.Trial + 1
		}
	}
	return n
}

// FinalChoiceOutcomes returns, per trial, the last outcome recorded in that
// trial, which is the outcome of its final choice.
func FinalChoiceOutcomes(evs []Event) ([]int, error) {
	outcomes := make([]int, NumTrials(evs))
	found := make([]bool, len(outcomes))
	for _, e := range evs {
		if e.Trial == nil || e.Outcome == nil {
			continue
		}
		if *e.Trial < 0 {
			return nil, fmt.Errorf("negative trial index %d", *e.Trial)
		}
		outcomes[*e.Trial] = *e.Outcome
		found[*e.Trial] = true
	}
	for trial, ok := range found {
		if !ok {
			return nil, fmt.Errorf("trial %d has no recorded outcome", trial)
		}
	}
	return outcomes, nil
}

// TotalFinalPoints sums the outcomes shown after final choices.
func TotalFinalPoints(evs []Event) int {
	total := 0
	for _, e := range evs {
		if e.Outcome != nil && e.ValueIs(ValueShowFinalOutcomeLeft, ValueShowFinalOutcomeRight) {
			total += *e.Outcome
		}
	}
	return total
}

// Bonus converts points to currency with the given exchange rate, rounding up.
func Bonus(points int, rate float64) int {
	return int(math.Ceil(payoff.Round(float64(points) * rate)))
}

// Sidecar describes every column of the events log, for writing next to the
// log as JSON.
func Sidecar() map[string]any {
	levels := make(map[string]string, len(valueNames))
	for v, name := range valueNames {
		levels[strconv.Itoa(v)] = name
	}

	d := map[string]any{
		"onset": map[string]any{
			"Description": "onset of the event",
			"Units":       "seconds",
		},
		"duration": map[string]any{
			"Description": "duration of the event",
			"Units":       "seconds",
		},
		"trial": map[string]any{
			"Description": "zero indexed trial counter, where a trial is a sequence of steps that ends with a final choice",
		},
		"action_type": map[string]any{
			"Description": "type of the action that the subject performed at this event within a trial",
			"Levels": map[string]string{
				string(ActionSample):        "the subject sampled either the left or the right option",
				string(ActionStop):          "the subject decided to stop sampling and use the next action for a final choice",
				string(ActionForcedStop):    "the subject took the maximum of samples and wanted another one, so sampling was stopped",
				string(ActionPrematureStop): "the subject tried to stop before taking a single sample, which is an error",
				string(ActionFinalChoice):   "the subject chose either the left or the right option as a final choice",
			},
		},
		"action": map[string]any{
			"Description": "the concrete action that the subject performed for the action type",
			"Levels": map[string]string{
				strconv.Itoa(ActionLeft):     "the subject picked the left option",
				strconv.Itoa(ActionRight):    "the subject picked the right option",
				strconv.Itoa(ActionStopping): "the subject decided to stop sampling, for action_type stop only",
			},
		},
		"outcome": map[string]any{
			"Description": "the outcome that the subject received for their action, a number in the range 1 to 9",
		},
		"response_time": map[string]any{
			"Description": "the time it took the subject to respond after the onset of the event",
			"Units":       "milliseconds",
		},
		"value": map[string]any{
			"Description": "the marker value associated with an event",
			"Levels":      levels,
		},
		"version": map[string]any{
			"Description": "version of the software used to collect the data",
		},
		"reset": map[string]any{
			"Description": "whether all prior events of this trial are void because of an error",
			"Levels": map[string]string{
				"0": "events are valid",
				"1": "all prior events of this trial are void",
			},
		},
	}

	for i, name := range payoff.LogColumnNames {
		side, outcome := i/4, (i%4)/2+1
		if i%2 == 0 {
			d[name] = map[string]any{
				"Description": fmt.Sprintf("magnitude of outcome %d of option %d", outcome, side),
			}
		} else {
			d[name] = map[string]any{
				"Description": fmt.Sprintf("probability of outcome %d of option %d", outcome, side),
			}
		}
	}
	return d
}

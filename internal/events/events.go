// Package events reads and writes the experiment's tab-separated events log.
// One row is written per event; payoff settings are stored in eight named
// columns whose order is fixed for compatibility with existing analyses.
package events

import (
	"fmt"

	"github.com/nvandessel/sampling-paradigm/internal/payoff"
)

// NA is written for every missing value.
const NA = "n/a"

// Columns is the header of the events log, in order.
var Columns = append(append([]string{
	"onset", "duration", "trial", "action_type", "action", "outcome",
	"response_time", "value",
}, payoff.LogColumnNames[:]...), "version", "reset")

// ActionType classifies what the participant did at an event.
type ActionType string

const (
	ActionNone          ActionType = ""
	ActionSample        ActionType = "sample"
	ActionStop          ActionType = "stop"
	ActionFinalChoice   ActionType = "final_choice"
	ActionForcedStop    ActionType = "forced_stop"
	ActionPrematureStop ActionType = "premature_stop"
)

// Valid returns true for a recognized action type, including ActionNone.
func (a ActionType) Valid() bool {
	switch a {
	case ActionNone, ActionSample, ActionStop, ActionFinalChoice, ActionForcedStop, ActionPrematureStop:
		return true
	}
	return false
}

// Concrete actions logged in the action column.
const (
	ActionLeft     = 0
	ActionRight    = 1
	ActionStopping = 2
)

// Event marker values logged in the value column.
const (
	ValueBeginExperiment       = 1
	ValueEndExperiment         = 2
	ValueNewTrial              = 3
	ValueSampleOnset           = 4
	ValueLeftChoice            = 5
	ValueRightChoice           = 6
	ValueFinalChoice           = 7
	ValueMaskOutcomeLeft       = 8
	ValueShowOutcomeLeft       = 9
	ValueMaskOutcomeRight      = 10
	ValueShowOutcomeRight      = 11
	ValueNewFinalChoice        = 12
	ValueFinalChoiceOnset      = 13
	ValueLeftFinalChoice       = 14
	ValueRightFinalChoice      = 15
	ValueMaskFinalOutcomeLeft  = 16
	ValueShowFinalOutcomeLeft  = 17
	ValueMaskFinalOutcomeRight = 18
	ValueShowFinalOutcomeRight = 19
	ValueError                 = 20
	ValueForcedStop            = 21
	ValuePrematureStop         = 22
	ValueBlockFeedback         = 23
)

// valueNames describes every marker value, used by Sidecar.
var valueNames = map[int]string{
	ValueBeginExperiment:       "beginning of the experiment",
	ValueEndExperiment:         "end of the experiment",
	ValueNewTrial:              "a new trial is starting",
	ValueSampleOnset:           "onset of a new sample within a trial",
	ValueLeftChoice:            "subject chose left during sampling",
	ValueRightChoice:           "subject chose right during sampling",
	ValueFinalChoice:           "subject decided to stop sampling and make a final choice",
	ValueMaskOutcomeLeft:       "outcome on the left is masked",
	ValueShowOutcomeLeft:       "outcome on the left is shown",
	ValueMaskOutcomeRight:      "outcome on the right is masked",
	ValueShowOutcomeRight:      "outcome on the right is shown",
	ValueNewFinalChoice:        "a final choice is starting",
	ValueFinalChoiceOnset:      "onset of the final choice",
	ValueLeftFinalChoice:       "subject chose left as final choice",
	ValueRightFinalChoice:      "subject chose right as final choice",
	ValueMaskFinalOutcomeLeft:  "final outcome on the left is masked",
	ValueShowFinalOutcomeLeft:  "final outcome on the left is shown",
	ValueMaskFinalOutcomeRight: "final outcome on the right is masked",
	ValueShowFinalOutcomeRight: "final outcome on the right is shown",
	ValueError:                 "error: all prior events of this trial are void",
	ValueForcedStop:            "maximum samples taken, sampling was force stopped",
	ValuePrematureStop:         "subject tried to stop before taking a single sample",
	ValueBlockFeedback:         "block feedback is displayed",
}

// Event is one row of the events log. Pointer fields are nil when the value
// is not applicable ("n/a" on disk).
type Event struct {
	Onset        float64         `json:"onset"`
	Duration     float64         `json:"duration"`
	Trial        *int            `json:"trial,omitempty"`
	ActionType   ActionType      `json:"action_type,omitempty"`
	Action       *int            `json:"action,omitempty"`
	Outcome      *int            `json:"outcome,omitempty"`
	ResponseTime *float64        `json:"response_time,omitempty"`
	Value        *int            `json:"value,omitempty"`
	Setting      *payoff.Setting `json:"setting,omitempty"`
	Version      string          `json:"version"`
	Reset        bool            `json:"reset"`
}

// Int returns a pointer to v, for filling optional Event fields.
func Int(v int) *int {
	return &v
}

// Float returns a pointer to v, for filling optional Event fields.
func Float(v float64) *float64 {
	return &v
}

// TrialIs reports whether the event belongs to the given trial.
func (e Event) TrialIs(trial int) bool {
	return e.Trial != nil && *e.Trial == trial
}

// ValueIs reports whether the event carries one of the given marker values.
func (e Event) ValueIs(values ...int) bool {
	if e.Value == nil {
		return false
	}
	for _, v := range values {
		if *e.Value == v {
			return true
		}
	}
	return false
}

func (e Event) String() string {
	trial := NA
	if e.Trial != nil {
		trial = fmt.Sprint(*e.Trial)
	}
	return fmt.Sprintf("event{onset=%g trial=%s type=%q}", e.Onset, trial, e.ActionType)
}

// Package mcp provides an MCP (Model Context Protocol) server for spgen.
package mcp

import (
	"time"

	"github.com/nvandessel/sampling-paradigm/internal/balance"
)

// SettingView is a payoff setting as returned by the tools.
type SettingView struct {
	ID         int     `json:"id"`
	LeftMag1   int     `json:"left_mag1"`
	LeftProb1  float64 `json:"left_prob1"`
	LeftMag2   int     `json:"left_mag2"`
	LeftProb2  float64 `json:"left_prob2"`
	RightMag1  int     `json:"right_mag1"`
	RightProb1 float64 `json:"right_prob1"`
	RightMag2  int     `json:"right_mag2"`
	RightProb2 float64 `json:"right_prob2"`
	EVDiff     float64 `json:"ev_diff"`
}

// EnumerateInput defines the input for the spgen_enumerate tool.
type EnumerateInput struct {
	EVDiff *float64 `json:"ev_diff,omitempty" jsonschema:"Exact expected value difference of every setting (default from config)"`
	Offset int      `json:"offset,omitempty" jsonschema:"Number of settings to skip"`
	Limit  int      `json:"limit,omitempty" jsonschema:"Maximum number of settings to return (default 50)"`
}

// EnumerateOutput defines the output for the spgen_enumerate tool.
type EnumerateOutput struct {
	EVDiff   float64       `json:"ev_diff" jsonschema:"Expected value difference used"`
	Total    int           `json:"total" jsonschema:"Size of the whole pool"`
	Settings []SettingView `json:"settings" jsonschema:"Settings in pool order"`
}

// ScheduleInput defines the input for the spgen_schedule tool.
type ScheduleInput struct {
	EVDiff  *float64 `json:"ev_diff,omitempty" jsonschema:"Expected value difference of the pool (default from config)"`
	NTrials *int     `json:"n_trials,omitempty" jsonschema:"Number of trials (default from config)"`
	CutoffP *float64 `json:"cutoff_p,omitempty" jsonschema:"Probability a class magnitude must exceed to count for its quota; negative disables"`
	Seed    *uint64  `json:"seed,omitempty" jsonschema:"Random seed; omitted means a fresh seed which is returned"`
	Save    bool     `json:"save,omitempty" jsonschema:"Store the schedule as a run"`
}

// ScheduleOutput defines the output for the spgen_schedule tool.
type ScheduleOutput struct {
	RunID     string                `json:"run_id,omitempty" jsonschema:"ID of the stored run when save was set"`
	Seed      uint64                `json:"seed" jsonschema:"Seed that reproduces the schedule"`
	PerClass  int                   `json:"per_class" jsonschema:"Quota drawn for every stimulus class"`
	Remainder int                   `json:"remainder" jsonschema:"Trials filled freely after the quotas"`
	Trials    []SettingView         `json:"trials" jsonschema:"One setting per trial in presentation order"`
	Coverage  map[string]int        `json:"coverage" jsonschema:"Trials showing each stimulus class"`
	Stats     balance.CoverageStats `json:"stats" jsonschema:"Summary of the coverage counts"`
}

// RewardListsInput defines the input for the spgen_reward_lists tool. Give
// either a setting ID or both reward lists.
type RewardListsInput struct {
	SettingID *int  `json:"setting_id,omitempty" jsonschema:"Setting ID in the raw enumeration"`
	Left      []int `json:"left,omitempty" jsonschema:"Left reward list of 10 outcomes"`
	Right     []int `json:"right,omitempty" jsonschema:"Right reward list of 10 outcomes"`
}

// RewardListsOutput defines the output for the spgen_reward_lists tool.
type RewardListsOutput struct {
	Setting SettingView `json:"setting" jsonschema:"The payoff setting"`
	Left    []int       `json:"left" jsonschema:"Left reward list"`
	Right   []int       `json:"right" jsonschema:"Right reward list"`
}

// CoverageInput defines the input for the spgen_coverage tool.
type CoverageInput struct {
	RunID   string   `json:"run_id" jsonschema:"Run ID or unique prefix"`
	CutoffP *float64 `json:"cutoff_p,omitempty" jsonschema:"Count only appearances with probability above this (default: the run's cutoff)"`
}

// CoverageOutput defines the output for the spgen_coverage tool.
type CoverageOutput struct {
	RunID    string                `json:"run_id" jsonschema:"Full run ID"`
	CutoffP  float64               `json:"cutoff_p" jsonschema:"Cutoff used for counting"`
	Coverage map[string]int        `json:"coverage" jsonschema:"Trials showing each stimulus class"`
	Stats    balance.CoverageStats `json:"stats" jsonschema:"Summary of the coverage counts"`
}

// RunsInput defines the input for the spgen_runs tool.
type RunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of runs, newest first (default 20)"`
}

// RunsOutput defines the output for the spgen_runs tool.
type RunsOutput struct {
	Runs  []RunListItem `json:"runs" jsonschema:"Stored runs"`
	Count int           `json:"count" jsonschema:"Number of runs returned"`
}

// RunListItem provides a list view of a stored run.
type RunListItem struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	EVDiff    float64   `json:"ev_diff"`
	NTrials   int       `json:"n_trials"`
	CutoffP   float64   `json:"cutoff_p"`
	Seed      uint64    `json:"seed"`
	Condition string    `json:"condition"`
}

// ExportInput defines the input for the spgen_export tool.
type ExportInput struct {
	Name   string   `json:"name" jsonschema:"File name inside .spgen/exports; .arrow is appended when missing"`
	RunID  string   `json:"run_id,omitempty" jsonschema:"Run ID or unique prefix to export; omit to export the pool"`
	EVDiff *float64 `json:"ev_diff,omitempty" jsonschema:"Expected value difference of the exported pool (default from config)"`
}

// ExportOutput defines the output for the spgen_export tool.
type ExportOutput struct {
	Path string `json:"path" jsonschema:"Absolute path of the written Arrow file"`
	Rows int    `json:"rows" jsonschema:"Number of settings written"`
	Kind string `json:"kind" jsonschema:"pool or schedule"`
}

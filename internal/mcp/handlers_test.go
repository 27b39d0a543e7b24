package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/sampling-paradigm/internal/balance"
	"github.com/nvandessel/sampling-paradigm/internal/constants"
	"github.com/nvandessel/sampling-paradigm/internal/export"
	"github.com/nvandessel/sampling-paradigm/internal/pathutil"
	"github.com/nvandessel/sampling-paradigm/internal/payoff"
	"github.com/nvandessel/sampling-paradigm/internal/ratelimit"
	"github.com/nvandessel/sampling-paradigm/internal/store"
)

func ptr[T any](v T) *T { return &v }

func TestHandleEnumerate(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	result, out, err := server.handleEnumerate(ctx, &sdk.CallToolRequest{}, EnumerateInput{Limit: 5})
	if err != nil {
		t.Fatalf("handleEnumerate failed: %v", err)
	}
	if result != nil {
		t.Error("Expected nil result (SDK auto-populates)")
	}
	if out.EVDiff != constants.DefaultEVDiff {
		t.Errorf("EVDiff = %v, want default %v", out.EVDiff, constants.DefaultEVDiff)
	}
	if out.Total != len(payoff.Enumerate(0.9)) {
		t.Errorf("Total = %d", out.Total)
	}
	if len(out.Settings) != 5 {
		t.Fatalf("len(Settings) = %d, want 5", len(out.Settings))
	}
	for _, s := range out.Settings {
		if s.EVDiff != 0.9 {
			t.Errorf("setting %d has ev_diff %v", s.ID, s.EVDiff)
		}
	}

	_, tail, err := server.handleEnumerate(ctx, nil, EnumerateInput{Offset: out.Total - 2, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(tail.Settings) != 2 {
		t.Errorf("tail len = %d, want 2", len(tail.Settings))
	}

	_, empty, err := server.handleEnumerate(ctx, nil, EnumerateInput{EVDiff: ptr(9.5)})
	if err != nil {
		t.Fatal(err)
	}
	if empty.Total != 0 || len(empty.Settings) != 0 {
		t.Errorf("ev_diff 9.5 returned %d settings", empty.Total)
	}

	if _, _, err := server.handleEnumerate(ctx, nil, EnumerateInput{Offset: -1}); err == nil {
		t.Error("negative offset should fail")
	}
}

func TestHandleSchedule(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleSchedule(ctx, nil, ScheduleInput{NTrials: ptr(18), Seed: ptr(uint64(1))})
	if err != nil {
		t.Fatalf("handleSchedule failed: %v", err)
	}
	if len(out.Trials) != 18 || out.Seed != 1 || out.PerClass != 1 {
		t.Errorf("out = %d trials, seed %d, per_class %d", len(out.Trials), out.Seed, out.PerClass)
	}
	if out.Stats.Min < 1 {
		t.Errorf("some class not covered: %+v", out.Stats)
	}
	if out.RunID != "" {
		t.Error("run saved without save flag")
	}

	want, err := balance.SampleBalanced(18, payoff.Enumerate(0.9), constants.CutoffDisabled, ptr(uint64(1)))
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if out.Trials[i].ID != want[i].ID {
			t.Fatalf("trial %d = %d, want %d", i, out.Trials[i].ID, want[i].ID)
		}
	}
}

func TestHandleSchedule_SaveAndCoverage(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleSchedule(ctx, nil, ScheduleInput{NTrials: ptr(36), CutoffP: ptr(0.2), Save: true})
	if err != nil {
		t.Fatalf("handleSchedule failed: %v", err)
	}
	if out.RunID == "" {
		t.Fatal("RunID empty with save flag")
	}

	_, cov, err := server.handleCoverage(ctx, nil, CoverageInput{RunID: out.RunID[:8]})
	if err != nil {
		t.Fatalf("handleCoverage failed: %v", err)
	}
	if cov.RunID != out.RunID {
		t.Errorf("RunID = %s, want %s", cov.RunID, out.RunID)
	}
	if cov.CutoffP != 0.2 {
		t.Errorf("CutoffP = %v, want the run's 0.2", cov.CutoffP)
	}
	if cov.Stats.Min < 2 {
		t.Errorf("coverage min = %d, want >= 2", cov.Stats.Min)
	}

	_, runs, err := server.handleRuns(ctx, nil, RunsInput{})
	if err != nil {
		t.Fatalf("handleRuns failed: %v", err)
	}
	if runs.Count != 1 || runs.Runs[0].ID != out.RunID || runs.Runs[0].Seed != out.Seed {
		t.Errorf("runs = %+v", runs)
	}

	res, err := server.handleRunResource(ctx, &sdk.ReadResourceRequest{
		Params: &sdk.ReadResourceParams{URI: runURIPrefix + out.RunID},
	})
	if err != nil {
		t.Fatalf("handleRunResource failed: %v", err)
	}
	var run store.Run
	if err := json.Unmarshal([]byte(res.Contents[0].Text), &run); err != nil {
		t.Fatalf("resource is not a run: %v", err)
	}
	if len(run.Trials) != 36 {
		t.Errorf("resource has %d trials, want 36", len(run.Trials))
	}
}

func TestHandlers_RejectInvalidEVDiff(t *testing.T) {
	server, _ := setupTestServer(t)
	server.toolLimiters = ratelimit.ToolLimiters{}
	ctx := context.Background()

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -0.5} {
		if _, _, err := server.handleEnumerate(ctx, nil, EnumerateInput{EVDiff: ptr(v)}); err == nil {
			t.Errorf("handleEnumerate(ev_diff=%v) should fail", v)
		}
		if _, _, err := server.handleSchedule(ctx, nil, ScheduleInput{EVDiff: ptr(v)}); err == nil {
			t.Errorf("handleSchedule(ev_diff=%v) should fail", v)
		}
		if _, _, err := server.handleExport(ctx, nil, ExportInput{Name: "x", EVDiff: ptr(v)}); err == nil {
			t.Errorf("handleExport(ev_diff=%v) should fail", v)
		}
	}
	if len(server.pools) != 0 {
		t.Errorf("invalid ev_diff values were cached: %d entries", len(server.pools))
	}
}

func TestHandleSchedule_Infeasible(t *testing.T) {
	server, _ := setupTestServer(t)

	_, _, err := server.handleSchedule(context.Background(), nil, ScheduleInput{
		NTrials: ptr(18 * 100000),
		Seed:    ptr(uint64(1)),
	})
	if !errors.Is(err, balance.ErrInfeasible) {
		t.Errorf("error = %v, want ErrInfeasible", err)
	}
}

func TestHandleRewardLists(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	s := payoff.Enumerate(0.9)[0]

	_, out, err := server.handleRewardLists(ctx, nil, RewardListsInput{SettingID: ptr(s.ID)})
	if err != nil {
		t.Fatalf("handleRewardLists failed: %v", err)
	}
	if len(out.Left) != constants.RewardListLen || len(out.Right) != constants.RewardListLen {
		t.Fatalf("list lengths = %d, %d", len(out.Left), len(out.Right))
	}
	if out.Setting.ID != s.ID {
		t.Errorf("Setting.ID = %d, want %d", out.Setting.ID, s.ID)
	}

	_, back, err := server.handleRewardLists(ctx, nil, RewardListsInput{Left: out.Left, Right: out.Right})
	if err != nil {
		t.Fatalf("reverse conversion failed: %v", err)
	}
	if back.Setting.EVDiff != 0.9 {
		t.Errorf("reverse setting ev_diff = %v", back.Setting.EVDiff)
	}

	bad := []RewardListsInput{
		{},
		{Left: out.Left},
		{SettingID: ptr(s.ID), Left: out.Left},
		{SettingID: ptr(-5)},
		{Left: []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, Right: out.Right},
	}
	for i, in := range bad {
		if _, _, err := server.handleRewardLists(ctx, nil, in); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestHandleCoverage_NotFound(t *testing.T) {
	server, _ := setupTestServer(t)

	_, _, err := server.handleCoverage(context.Background(), nil, CoverageInput{RunID: "nope"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestHandlers_RateLimited(t *testing.T) {
	server, _ := setupTestServer(t)
	server.toolLimiters = ratelimit.ToolLimiters{"spgen_runs": ratelimit.NewLimiter(0, 1)}
	ctx := context.Background()

	if _, _, err := server.handleRuns(ctx, nil, RunsInput{}); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if _, _, err := server.handleRuns(ctx, nil, RunsInput{}); err == nil {
		t.Error("second call should be rate limited")
	}
}

func TestHandleExport(t *testing.T) {
	server, dataDir := setupTestServer(t)
	ctx := context.Background()

	_, pool, err := server.handleExport(ctx, nil, ExportInput{Name: "pool"})
	if err != nil {
		t.Fatalf("handleExport(pool) failed: %v", err)
	}
	if filepath.Base(pool.Path) != "pool.arrow" || filepath.Base(filepath.Dir(pool.Path)) != pathutil.ExportsDir {
		t.Errorf("Path = %s", pool.Path)
	}
	if pool.Kind != "pool" || pool.Rows != len(payoff.Enumerate(constants.DefaultEVDiff)) {
		t.Errorf("pool export = %+v", pool)
	}
	if _, err := os.Stat(filepath.Join(pathutil.ExportDir(dataDir), "pool.arrow")); err != nil {
		t.Errorf("export not written: %v", err)
	}

	_, sched, err := server.handleSchedule(ctx, nil, ScheduleInput{NTrials: ptr(18), Seed: ptr(uint64(3)), Save: true})
	if err != nil {
		t.Fatal(err)
	}
	_, run, err := server.handleExport(ctx, nil, ExportInput{Name: "run.arrow", RunID: sched.RunID})
	if err != nil {
		t.Fatalf("handleExport(run) failed: %v", err)
	}
	settings, meta, err := export.ReadFile(run.Path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(settings) != 18 || meta["run_id"] != sched.RunID {
		t.Errorf("read %d settings, run_id %q", len(settings), meta["run_id"])
	}
}

func TestHandleExport_Rejects(t *testing.T) {
	server, _ := setupTestServer(t)
	server.toolLimiters = ratelimit.ToolLimiters{}
	ctx := context.Background()

	tests := []struct {
		name string
		in   ExportInput
	}{
		{"no name", ExportInput{}},
		{"escapes exports dir", ExportInput{Name: "../escape"}},
		{"absolute path", ExportInput{Name: filepath.Join(t.TempDir(), "x")}},
		{"nested path", ExportInput{Name: "sub/x"}},
		{"run and ev_diff", ExportInput{Name: "x", RunID: "abc", EVDiff: ptr(0.9)}},
		{"unknown run", ExportInput{Name: "x", RunID: "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := server.handleExport(ctx, nil, tt.in); err == nil {
				t.Error("expected error")
			}
		})
	}
}

package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/sampling-paradigm/internal/balance"
	"github.com/nvandessel/sampling-paradigm/internal/export"
	"github.com/nvandessel/sampling-paradigm/internal/payoff"
	"github.com/nvandessel/sampling-paradigm/internal/store"
)

type scheduleOutput struct {
	RunID     string           `json:"run_id"`
	Seed      uint64           `json:"seed"`
	PerClass  int              `json:"per_class"`
	Remainder int              `json:"remainder"`
	PoolSize  int              `json:"pool_size"`
	Trials    []payoff.Setting `json:"trials"`
	Coverage  map[string]int   `json:"coverage"`
}

func TestScheduleCmd_SavesReproducibleRun(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	var sched scheduleOutput
	runJSON(t, &sched, "schedule", "--root", tmpDir, "--seed", "7", "--n-trials", "36")

	if sched.RunID == "" {
		t.Fatal("expected a run ID")
	}
	if sched.Seed != 7 {
		t.Errorf("seed = %d, want 7", sched.Seed)
	}
	if len(sched.Trials) != 36 || sched.PerClass != 2 || sched.Remainder != 0 {
		t.Errorf("got %d trials, per_class %d, remainder %d; want 36, 2, 0",
			len(sched.Trials), sched.PerClass, sched.Remainder)
	}
	for class, n := range sched.Coverage {
		if n < 2 {
			t.Errorf("class %s covered %d times, want >= 2", class, n)
		}
	}

	var shown struct {
		Run        store.Run `json:"run"`
		Verified   bool      `json:"verified"`
		Mismatches []int     `json:"mismatches"`
	}
	runJSON(t, &shown, "show", sched.RunID[:8], "--root", tmpDir, "--verify")

	if shown.Run.ID != sched.RunID {
		t.Errorf("show returned run %q, want %q", shown.Run.ID, sched.RunID)
	}
	if !shown.Verified {
		t.Errorf("verify failed at trials %v", shown.Mismatches)
	}
	for i, s := range shown.Run.Trials {
		if s.ID != sched.Trials[i].ID {
			t.Fatalf("trial %d: stored setting %d, want %d", i, s.ID, sched.Trials[i].ID)
		}
	}
}

func TestScheduleCmd_NoSave(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	var sched scheduleOutput
	runJSON(t, &sched, "schedule", "--root", tmpDir, "--no-save")

	if sched.RunID != "" {
		t.Errorf("run_id = %q, want empty", sched.RunID)
	}
	if len(sched.Trials) != 18 {
		t.Errorf("len(trials) = %d, want default 18", len(sched.Trials))
	}
	if _, err := os.Stat(filepath.Join(store.LocalPath(tmpDir), store.DBFile)); !os.IsNotExist(err) {
		t.Errorf("database created with --no-save (stat err = %v)", err)
	}
}

func TestScheduleCmd_Infeasible(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	_, err := runCmd(t, "schedule", "--root", tmpDir, "--n-trials", "1800000", "--no-save")
	if !errors.Is(err, balance.ErrInfeasible) {
		t.Errorf("err = %v, want ErrInfeasible", err)
	}
}

func TestScheduleCmd_Text(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	out, err := runCmd(t, "schedule", "--root", tmpDir, "--seed", "1", "--cutoff", "0.2")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	for _, want := range []string{"Run ", "cutoff:     p > 0.2", "seed:       1", "Coverage:", "left:1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunsCmd_ListExportDelete(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	var sched scheduleOutput
	runJSON(t, &sched, "schedule", "--root", tmpDir, "--seed", "3")

	var listed struct {
		Runs  []store.Run `json:"runs"`
		Count int         `json:"count"`
	}
	runJSON(t, &listed, "runs", "list", "--root", tmpDir)
	if listed.Count != 1 || listed.Runs[0].ID != sched.RunID {
		t.Fatalf("runs list = %+v, want the one saved run", listed)
	}
	if len(listed.Runs[0].Trials) != 0 {
		t.Error("runs list should not load trials")
	}

	arrowPath := filepath.Join(tmpDir, "schedule.arrow")
	if _, err := runCmd(t, "export", "run", sched.RunID, "--root", tmpDir, "--out", arrowPath); err != nil {
		t.Fatalf("export run: %v", err)
	}
	settings, meta, err := export.ReadFile(arrowPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(settings) != len(sched.Trials) {
		t.Fatalf("exported %d settings, want %d", len(settings), len(sched.Trials))
	}
	for i := range settings {
		if settings[i].ID != sched.Trials[i].ID {
			t.Errorf("row %d: setting %d, want %d", i, settings[i].ID, sched.Trials[i].ID)
		}
	}
	if meta["run_id"] != sched.RunID || meta["seed"] != "3" {
		t.Errorf("metadata = %v", meta)
	}

	if _, err := runCmd(t, "runs", "delete", sched.RunID[:6], "--root", tmpDir); err != nil {
		t.Fatalf("runs delete: %v", err)
	}
	runJSON(t, &listed, "runs", "list", "--root", tmpDir)
	if listed.Count != 0 {
		t.Errorf("count after delete = %d, want 0", listed.Count)
	}

	_, err = runCmd(t, "show", sched.RunID, "--root", tmpDir)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("show deleted run: err = %v, want ErrNotFound", err)
	}
}

func TestExportPoolCmd(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	arrowPath := filepath.Join(tmpDir, "pool.arrow")
	if _, err := runCmd(t, "export", "pool", "--root", tmpDir, "--ev-diff", "0.5", "--out", arrowPath); err != nil {
		t.Fatalf("export pool: %v", err)
	}

	settings, meta, err := export.ReadFile(arrowPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if want := len(payoff.Enumerate(0.5)); len(settings) != want {
		t.Errorf("exported %d settings, want %d", len(settings), want)
	}
	if meta["kind"] != "pool" || meta["ev_diff"] != "0.5" {
		t.Errorf("metadata = %v", meta)
	}
}

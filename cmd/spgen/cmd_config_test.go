package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/sampling-paradigm/internal/config"
)

func TestConfigCmd_SetGet(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	if _, err := runCmd(t, "config", "set", "experiment.n_trials", "36"); err != nil {
		t.Fatalf("config set: %v", err)
	}

	configPath := filepath.Join(tmpDir, "home", ".spgen", "config.yaml")
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	var got struct {
		Key   string `json:"key"`
		Value int    `json:"value"`
	}
	runJSON(t, &got, "config", "get", "experiment.n_trials")
	if got.Value != 36 {
		t.Errorf("experiment.n_trials = %d, want 36", got.Value)
	}

	var listed config.SpgenConfig
	runJSON(t, &listed, "config", "list")
	if listed.Experiment.NTrials != 36 {
		t.Errorf("list n_trials = %d, want 36", listed.Experiment.NTrials)
	}
	if listed.Experiment.EVDiff != 0.9 {
		t.Errorf("list ev_diff = %v, want default 0.9", listed.Experiment.EVDiff)
	}
}

func TestConfigCmd_SetDoesNotPersistEnv(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	t.Setenv("SPGEN_EV_DIFF", "0.5")

	if _, err := runCmd(t, "config", "set", "experiment.max_samples", "20"); err != nil {
		t.Fatalf("config set: %v", err)
	}

	path, err := config.Path()
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Experiment.EVDiff != 0.9 {
		t.Errorf("saved ev_diff = %v, want 0.9 (env override persisted)", cfg.Experiment.EVDiff)
	}
	if cfg.Experiment.MaxSamples != 20 {
		t.Errorf("saved max_samples = %d, want 20", cfg.Experiment.MaxSamples)
	}
}

func TestConfigCmd_Errors(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	tests := []struct {
		name string
		args []string
	}{
		{"get unknown", []string{"config", "get", "nope"}},
		{"set unknown", []string{"config", "set", "nope", "1"}},
		{"set unparseable", []string{"config", "set", "experiment.n_trials", "many"}},
		{"set invalid", []string{"config", "set", "experiment.max_samples", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCmd(t, tt.args...); err == nil {
				t.Errorf("%v: expected error", tt.args)
			}
		})
	}
}

func TestConfigCmd_ConfiguresCommands(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	if _, err := runCmd(t, "config", "set", "experiment.seed", "99"); err != nil {
		t.Fatalf("config set: %v", err)
	}

	var sched scheduleOutput
	runJSON(t, &sched, "schedule", "--root", tmpDir, "--no-save")
	if sched.Seed != 99 {
		t.Errorf("seed = %d, want configured 99", sched.Seed)
	}
}

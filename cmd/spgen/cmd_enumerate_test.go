package main

import (
	"strings"
	"testing"

	"github.com/nvandessel/sampling-paradigm/internal/payoff"
)

func TestEnumerateCmd_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	pool := payoff.Enumerate(0.9)

	var got struct {
		EVDiff   float64          `json:"ev_diff"`
		Total    int              `json:"total"`
		Offset   int              `json:"offset"`
		Settings []payoff.Setting `json:"settings"`
	}
	runJSON(t, &got, "enumerate", "--root", tmpDir, "--limit", "3", "--offset", "2")

	if got.Total != len(pool) {
		t.Errorf("total = %d, want %d", got.Total, len(pool))
	}
	if got.EVDiff != 0.9 {
		t.Errorf("ev_diff = %v, want 0.9", got.EVDiff)
	}
	if len(got.Settings) != 3 {
		t.Fatalf("len(settings) = %d, want 3", len(got.Settings))
	}
	if got.Settings[0].ID != pool[2].ID {
		t.Errorf("first ID = %d, want %d", got.Settings[0].ID, pool[2].ID)
	}
}

func TestEnumerateCmd_Text(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	out, err := runCmd(t, "enumerate", "--root", tmpDir, "--ev-diff", "0.5", "--limit", "1")
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if !strings.Contains(out, "with ev_diff 0.5") {
		t.Errorf("missing header in %q", out)
	}
	if !strings.Contains(out, "more (use --offset/--limit)") {
		t.Errorf("missing truncation note in %q", out)
	}
}

func TestEnumerateCmd_RejectsNegativeLimit(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	if _, err := runCmd(t, "enumerate", "--root", tmpDir, "--limit", "-1"); err == nil {
		t.Error("expected error for negative limit")
	}
}

package main

import (
	"strconv"
	"strings"
	"testing"

	"github.com/nvandessel/sampling-paradigm/internal/payoff"
)

type rewardsOutput struct {
	Setting payoff.Setting `json:"setting"`
	Left    []int          `json:"left"`
	Right   []int          `json:"right"`
	EVDiff  float64        `json:"ev_diff"`
}

func TestRewardsCmd_FromID(t *testing.T) {
	want := payoff.Enumerate(0.9)[0]

	var got rewardsOutput
	runJSON(t, &got, "rewards", strconv.Itoa(want.ID))

	if got.Setting.ID != want.ID || !got.Setting.SameValues(want) {
		t.Errorf("setting = %v, want %v", got.Setting, want)
	}
	if len(got.Left) != 10 || len(got.Right) != 10 {
		t.Errorf("list lengths %d/%d, want 10/10", len(got.Left), len(got.Right))
	}
	if got.EVDiff != 0.9 {
		t.Errorf("ev_diff = %v, want 0.9", got.EVDiff)
	}
}

func TestRewardsCmd_FromLists(t *testing.T) {
	var got rewardsOutput
	runJSON(t, &got, "rewards",
		"--left", "3,3,3,3,3,4,4,4,4,4",
		"--right", "1,1,1,1,1,1,1,1,8,8")

	if got.Setting.ID != payoff.UnknownID {
		t.Errorf("ID = %d, want UnknownID", got.Setting.ID)
	}
	left := got.Setting.Left
	if left.Mag1 != 3 || left.Prob1 != 0.5 || left.Mag2 != 4 || left.Prob2 != 0.5 {
		t.Errorf("left = %+v", left)
	}
	right := got.Setting.Right
	if right.Mag1 != 1 || right.Prob1 != 0.8 || right.Mag2 != 8 || right.Prob2 != 0.2 {
		t.Errorf("right = %+v", right)
	}

	out, err := runCmd(t, "rewards", "--left", "3,3,3,3,3,4,4,4,4,4", "--right", "1,1,1,1,1,1,1,1,8,8")
	if err != nil {
		t.Fatalf("rewards: %v", err)
	}
	if !strings.Contains(out, "L(3:0.5,4:0.5) R(1:0.8,8:0.2)") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRewardsCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no input", []string{"rewards"}},
		{"id and lists", []string{"rewards", "5", "--left", "1,2"}},
		{"bad id", []string{"rewards", "x"}},
		{"id out of range", []string{"rewards", "-1"}},
		{"one list only", []string{"rewards", "--left", "3,3,3,3,3,4,4,4,4,4"}},
		{"single value list", []string{"rewards", "--left", "3,3,3,3,3,3,3,3,3,3", "--right", "1,1,1,1,1,1,1,1,8,8"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCmd(t, tt.args...); err == nil {
				t.Errorf("%v: expected error", tt.args)
			}
		})
	}
}

package payoff

import (
	"math/rand/v2"
	"testing"
)

func TestToRewardLists(t *testing.T) {
	s := testSetting()
	r, err := ToRewardLists(s)
	if err != nil {
		t.Fatalf("ToRewardLists failed: %v", err)
	}

	wantLeft := []int{3, 3, 3, 4, 4, 4, 4, 4, 4, 4}
	wantRight := []int{1, 1, 1, 1, 1, 1, 8, 8, 8, 8}
	assertInts(t, "left", r[SideLeft], wantLeft)
	assertInts(t, "right", r[SideRight], wantRight)
}

func TestToRewardLists_RoundTripsProbabilities(t *testing.T) {
	for _, s := range Enumerate(0.9) {
		r, err := ToRewardLists(s)
		if err != nil {
			t.Fatalf("ToRewardLists(%v) failed: %v", s, err)
		}
		for _, side := range Sides {
			if len(r[side]) != 10 {
				t.Fatalf("%v %s list has %d entries, want 10", s, side, len(r[side]))
			}
			d := s.Side(side)
			values, probs := r.Probabilities(side)
			if len(values) != 2 || values[0] != d.Mag1 || values[1] != d.Mag2 {
				t.Fatalf("%v %s values = %v", s, side, values)
			}
			if probs[0] != d.Prob1 || probs[1] != d.Prob2 {
				t.Fatalf("%v %s probabilities = %v, want [%v %v]", s, side, probs, d.Prob1, d.Prob2)
			}
		}

		back, err := FromRewardLists(r)
		if err != nil {
			t.Fatalf("FromRewardLists failed: %v", err)
		}
		if !back.SameValues(s) {
			t.Fatalf("FromRewardLists(ToRewardLists(%v)) = %v", s, back)
		}
	}
}

func TestToRewardLists_RejectsNonTenth(t *testing.T) {
	s := testSetting()
	s.Left.Prob1, s.Left.Prob2 = 0.25, 0.75
	if _, err := ToRewardLists(s); err == nil {
		t.Fatal("expected error for probability 0.25")
	}
}

func TestFromRewardLists_RejectsSingleValue(t *testing.T) {
	r := RewardLists{
		{5, 5, 5, 5, 5, 5, 5, 5, 5, 5},
		{1, 1, 1, 1, 1, 8, 8, 8, 8, 8},
	}
	if _, err := FromRewardLists(r); err == nil {
		t.Fatal("expected error for a side with one distinct value")
	}
}

func TestRewardLists_Draw(t *testing.T) {
	r, err := ToRewardLists(testSetting())
	if err != nil {
		t.Fatalf("ToRewardLists failed: %v", err)
	}
	rng := rand.New(rand.NewPCG(1, 2))

	counts := map[int]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		v, err := r.Draw(SideRight, rng)
		if err != nil {
			t.Fatalf("Draw failed: %v", err)
		}
		counts[v]++
	}
	if len(counts) != 2 {
		t.Fatalf("drew values %v, want only 1 and 8", counts)
	}
	frac := float64(counts[1]) / n
	if frac < 0.57 || frac > 0.63 {
		t.Errorf("magnitude 1 drawn with frequency %v, want about 0.6", frac)
	}

	if _, err := r.Draw(Side(5), rng); err == nil {
		t.Error("expected error for invalid side")
	}
	if _, err := (RewardLists{}).Draw(SideLeft, rng); err == nil {
		t.Error("expected error for empty list")
	}
}

func assertInts(t *testing.T, name string, got, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("%s = %v, want %v", name, got, want)
		}
	}
}

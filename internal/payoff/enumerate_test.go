package payoff

import (
	"math"
	"testing"
)

func TestSingleDistributions(t *testing.T) {
	single := SingleDistributions()
	if len(single) != 324 {
		t.Fatalf("len(SingleDistributions()) = %d, want 324", len(single))
	}

	first := single[0]
	if first.Mag1 != 1 || first.Mag2 != 2 || first.Prob1 != 0.1 || first.Prob2 != 0.9 {
		t.Errorf("first distribution = %+v, want {1 2 0.1 0.9}", first)
	}
	last := single[len(single)-1]
	if last.Mag1 != 8 || last.Mag2 != 9 || last.Prob1 != 0.9 || last.Prob2 != 0.1 {
		t.Errorf("last distribution = %+v, want {8 9 0.9 0.1}", last)
	}

	for i, d := range single {
		if err := d.Validate(); err != nil {
			t.Errorf("single[%d] = %+v invalid: %v", i, d, err)
		}
	}
}

func TestRawSettingCount(t *testing.T) {
	if got := RawSettingCount(); got != 104976 {
		t.Errorf("RawSettingCount() = %d, want 104976", got)
	}
}

func TestEnumerate_Deterministic(t *testing.T) {
	a := Enumerate(0.9)
	b := Enumerate(0.9)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("row %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestEnumerate_Invariants(t *testing.T) {
	for _, evDiff := range []float64{0.1, 0.5, 0.9, 1.0, 2.3} {
		pool := Enumerate(evDiff)
		if len(pool) == 0 {
			t.Errorf("Enumerate(%v) returned an empty pool", evDiff)
			continue
		}

		seen := make(map[int]bool, len(pool))
		prevID := -1
		for _, s := range pool {
			evL := float64(s.Left.Mag1)*s.Left.Prob1 + float64(s.Left.Mag2)*s.Left.Prob2
			evR := float64(s.Right.Mag1)*s.Right.Prob1 + float64(s.Right.Mag2)*s.Right.Prob2
			if Round(math.Abs(evL-evR)) != Round(evDiff) {
				t.Errorf("Enumerate(%v): %v has EV difference %v", evDiff, s, math.Abs(evL-evR))
			}
			if !s.Distinct() {
				t.Errorf("Enumerate(%v): %v has repeated magnitudes", evDiff, s)
			}
			if s.Dominated() {
				t.Errorf("Enumerate(%v): %v is dominated", evDiff, s)
			}
			if err := s.Validate(); err != nil {
				t.Errorf("Enumerate(%v): %v invalid: %v", evDiff, s, err)
			}
			if seen[s.ID] {
				t.Errorf("Enumerate(%v): duplicate ID %d", evDiff, s.ID)
			}
			seen[s.ID] = true
			if s.ID <= prevID {
				t.Errorf("Enumerate(%v): IDs not increasing (%d after %d)", evDiff, s.ID, prevID)
			}
			prevID = s.ID
		}
	}
}

func TestEnumerate_ContainsKnownRow(t *testing.T) {
	want := Setting{
		Left:  Distribution{Mag1: 3, Mag2: 4, Prob1: 0.5, Prob2: 0.5},
		Right: Distribution{Mag1: 1, Mag2: 8, Prob1: 0.5, Prob2: 0.5},
	}
	for _, s := range Enumerate(1.0) {
		if s.SameValues(want) {
			return
		}
	}
	t.Errorf("Enumerate(1.0) does not contain %v", want)
}

func TestEnumerate_IDMatchesRotation(t *testing.T) {
	single := SingleDistributions()
	n := len(single)
	for _, s := range Enumerate(0.9) {
		i, j := s.ID/n, s.ID%n
		if s.Right != single[j] {
			t.Fatalf("%v: right side does not match single[%d]", s, j)
		}
		if s.Left != single[(j-i+n)%n] {
			t.Fatalf("%v: left side does not match rotation %d", s, i)
		}
	}
}

func TestEnumerate_EmptyForUnreachableDiff(t *testing.T) {
	tests := []struct {
		name   string
		evDiff float64
	}{
		{"beyond max spread", 9.5},
		{"negative", -0.5},
		{"not a tenth", 0.05},
		{"NaN", math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if pool := Enumerate(tt.evDiff); len(pool) != 0 {
				t.Errorf("Enumerate(%v) returned %d rows, want 0", tt.evDiff, len(pool))
			}
		})
	}
}

func TestLookup(t *testing.T) {
	pool := Enumerate(0.9)
	byID := Lookup(pool)
	if len(byID) != len(pool) {
		t.Fatalf("len(Lookup) = %d, want %d", len(byID), len(pool))
	}
	for _, s := range pool[:10] {
		if byID[s.ID] != s {
			t.Errorf("Lookup[%d] = %v, want %v", s.ID, byID[s.ID], s)
		}
	}
}

func TestByID(t *testing.T) {
	for _, s := range Enumerate(0.9)[:50] {
		got, err := ByID(s.ID)
		if err != nil {
			t.Fatalf("ByID(%d) error = %v", s.ID, err)
		}
		if got != s {
			t.Errorf("ByID(%d) = %v, want %v", s.ID, got, s)
		}
	}
	for _, id := range []int{-1, RawSettingCount()} {
		if _, err := ByID(id); err == nil {
			t.Errorf("ByID(%d) should fail", id)
		}
	}
}

package scheduler

import (
	"testing"

	"github.com/vietddude/dbwatch/internal/core/domain"
)

func TestIsDue(t *testing.T) {
	for n := 1; n <= 12; n++ {
		for tick := uint64(0); tick < 100; tick++ {
			want := tick%uint64(n) == 0
			if got := IsDue(tick, n); got != want {
				t.Fatalf("IsDue(%d, %d) = %v, want %v", tick, n, got, want)
			}
		}
	}

	for _, n := range []int{0, -1, -60} {
		if IsDue(0, n) {
			t.Errorf("interval %d should never be due", n)
		}
	}
}

func TestDue_PerfEveryFiveMinutes(t *testing.T) {
	sections := []domain.Section{{Name: "perf", Interval: 5}}

	tests := []struct {
		tick uint64
		want bool
	}{
		{0, true}, {1, false}, {2, false}, {3, false}, {4, false},
		{5, true}, {6, false}, {10, true},
	}
	for _, tt := range tests {
		got := len(Due(tt.tick, sections)) == 1
		if got != tt.want {
			t.Errorf("tick %d: due = %v, want %v", tt.tick, got, tt.want)
		}
	}
}

func TestDue_OrderedByName(t *testing.T) {
	sections := []domain.Section{
		{Name: "zeta", Interval: 1},
		{Name: "alpha", Interval: 2},
		{Name: "mid", Interval: 3},
	}

	due := Due(6, sections)
	if len(due) != 3 {
		t.Fatalf("expected 3 due sections, got %d", len(due))
	}
	if due[0].Name != "alpha" || due[1].Name != "mid" || due[2].Name != "zeta" {
		t.Errorf("unexpected order: %s, %s, %s", due[0].Name, due[1].Name, due[2].Name)
	}

	due = Due(1, sections)
	if len(due) != 1 || due[0].Name != "zeta" {
		t.Errorf("tick 1: expected only zeta, got %+v", due)
	}
}

func TestState_FreshSessionRunsEverything(t *testing.T) {
	sections := []domain.Section{
		{Name: "hourly", Interval: 60},
		{Name: "daily", Interval: 1440},
	}

	var s State
	for i := 0; i < 7; i++ {
		s = s.Advance()
	}
	if len(Due(s.Tick, sections)) != 0 {
		t.Fatal("nothing should be due at tick 7")
	}

	s = State{}
	if got := len(Due(s.Tick, sections)); got != 2 {
		t.Errorf("fresh state: expected all sections due, got %d", got)
	}
}

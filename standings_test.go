package minesduel

import (
	"testing"
	"time"
)

func ms(v int64) *int64 { return &v }

func ranks(s []Standing) []int {
	out := make([]int, len(s))
	for i, st := range s {
		out[i] = st.Rank
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStandingsWinLose(t *testing.T) {
	a := &Player{ID: 1, Result: outcome(OutcomeLose)}
	b := &Player{ID: 2, Result: outcome(OutcomeWin)}

	got := Standings([]*Player{a, b})
	if got[0].Player != b || got[1].Player != a {
		t.Errorf("order = %d, %d", got[0].Player.ID, got[1].Player.ID)
	}
	if !equalInts(ranks(got), []int{1, 2}) {
		t.Errorf("ranks = %v", ranks(got))
	}
}

func TestStandingsSharedRank(t *testing.T) {
	got := Standings([]*Player{
		{ID: 1, Result: outcome(OutcomeDraw)},
		{ID: 2, Result: outcome(OutcomeDraw)},
	})
	if !equalInts(ranks(got), []int{1, 1}) {
		t.Errorf("ranks = %v", ranks(got))
	}
}

func TestStandingsSkipsTiedPlaces(t *testing.T) {
	got := Standings([]*Player{
		{ID: 1, Result: outcome(OutcomeLose)},
		{ID: 2, Result: outcome(OutcomeDraw)},
		{ID: 3, Result: outcome(OutcomeWin)},
		{ID: 4, Result: outcome(OutcomeDraw)},
	})
	if !equalInts(ranks(got), []int{1, 2, 2, 4}) {
		t.Errorf("ranks = %v", ranks(got))
	}
	if got[0].Player.ID != 3 || got[3].Player.ID != 1 {
		t.Errorf("unexpected order: %d first, %d last", got[0].Player.ID, got[3].Player.ID)
	}
}

func TestStandingsTieBreaks(t *testing.T) {
	early, late := t0, t0.Add(time.Second)
	got := Standings([]*Player{
		{ID: 1, Result: outcome(OutcomeDraw)},
		{ID: 2, Result: outcome(OutcomeDraw), DurationMs: ms(9000), FinishedAt: &late},
		{ID: 3, Result: outcome(OutcomeDraw), DurationMs: ms(9000), FinishedAt: &early},
		{ID: 4, Result: outcome(OutcomeDraw), DurationMs: ms(4000)},
		{ID: 5, Result: outcome(OutcomeForfeit), DurationMs: ms(1)},
		{ID: 6},
	})

	var order []int
	for _, s := range got {
		order = append(order, int(s.Player.ID))
	}
	if !equalInts(order, []int{4, 3, 2, 1, 5, 6}) {
		t.Errorf("order = %v", order)
	}
	if !equalInts(ranks(got), []int{1, 2, 3, 4, 5, 6}) {
		t.Errorf("ranks = %v", ranks(got))
	}
}

func TestPoints(t *testing.T) {
	tests := []struct {
		rank, total, want int
	}{
		{1, 1, 0},
		{1, 2, 10},
		{2, 2, 2},
		{1, 3, 14},
		{3, 3, 2},
		{1, 4, 18},
		{2, 4, 10},
		{4, 4, 2},
		{5, 4, 1},
		{1, 5, 26},
		{5, 5, 5},
		{10, 10, 3},
		{11, 10, 1},
		{0, 2, 0},
	}

	for _, tc := range tests {
		if got := Points(tc.rank, tc.total); got != tc.want {
			t.Errorf("Points(%d, %d) = %d, want %d", tc.rank, tc.total, got, tc.want)
		}
	}
}

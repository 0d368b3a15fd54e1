package minesduel

import (
	"errors"
	"testing"
	"time"
)

func pair() (*Match, *Player, *Player) {
	return startedMatch(t0, 300), &Player{ID: 1}, &Player{ID: 2}
}

func TestResolveCascade(t *testing.T) {
	tests := []struct {
		reported Outcome
		other    Outcome
	}{
		{OutcomeWin, OutcomeLose},
		{OutcomeLose, OutcomeWin},
	}

	for _, tc := range tests {
		t.Run(string(tc.reported), func(t *testing.T) {
			m, a, b := pair()
			now := t0.Add(time.Minute)

			trig, err := Resolve(m, []*Player{a, b}, a.ID, tc.reported, now)
			if err != nil {
				t.Fatal(err)
			}
			if trig != TriggerDecisive {
				t.Errorf("trigger = %q", trig)
			}
			if *a.Result != tc.reported || *b.Result != tc.other {
				t.Errorf("results = %s/%s", *a.Result, *b.Result)
			}
			if m.Status != StatusFinished || m.EndedAt == nil {
				t.Errorf("match = %s ended %v", m.Status, m.EndedAt)
			}
			if b.FinishedAt == nil || !b.FinishedAt.Equal(now) {
				t.Errorf("cascaded player finished_at = %v", b.FinishedAt)
			}
		})
	}
}

func TestResolveDrawWaitsForOpponent(t *testing.T) {
	for _, o := range []Outcome{OutcomeDraw, OutcomeForfeit} {
		t.Run(string(o), func(t *testing.T) {
			m, a, b := pair()
			players := []*Player{a, b}

			trig, err := Resolve(m, players, a.ID, o, t0.Add(time.Minute))
			if err != nil {
				t.Fatal(err)
			}
			if trig != "" || m.Status != StatusActive {
				t.Fatalf("match closed early: %q %s", trig, m.Status)
			}
			if b.Result != nil {
				t.Fatalf("opponent got %s", *b.Result)
			}

			trig, err = Resolve(m, players, b.ID, OutcomeLose, t0.Add(2*time.Minute))
			if err != nil {
				t.Fatal(err)
			}
			if trig != TriggerDecisive || m.Status != StatusFinished {
				t.Errorf("second report: %q %s", trig, m.Status)
			}
			if *a.Result != o {
				t.Errorf("first result overwritten with %s", *a.Result)
			}
		})
	}
}

func TestResolveAllReported(t *testing.T) {
	m, a, b := pair()
	players := []*Player{a, b}
	if _, err := Resolve(m, players, a.ID, OutcomeDraw, t0); err != nil {
		t.Fatal(err)
	}
	trig, err := Resolve(m, players, b.ID, OutcomeForfeit, t0)
	if err != nil {
		t.Fatal(err)
	}
	if trig != TriggerAllReported || m.Status != StatusFinished {
		t.Errorf("got %q %s", trig, m.Status)
	}
}

func TestResolveIdempotent(t *testing.T) {
	m, a, b := pair()
	players := []*Player{a, b}
	if _, err := Resolve(m, players, a.ID, OutcomeWin, t0); err != nil {
		t.Fatal(err)
	}

	trig, err := Resolve(m, players, a.ID, OutcomeLose, t0.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if trig != "" || *a.Result != OutcomeWin || *b.Result != OutcomeLose {
		t.Errorf("repeat report changed state: %q %s %s", trig, *a.Result, *b.Result)
	}

	// The loser reporting after the cascade is also a no-op.
	if _, err := Resolve(m, players, b.ID, OutcomeWin, t0.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if *b.Result != OutcomeLose {
		t.Errorf("cascaded result overwritten with %s", *b.Result)
	}
}

func TestResolveFromPending(t *testing.T) {
	m := &Match{Status: StatusPending}
	a := &Player{ID: 7}

	trig, err := Resolve(m, []*Player{a}, a.ID, OutcomeForfeit, t0)
	if err != nil {
		t.Fatal(err)
	}
	if trig != TriggerAllReported || m.Status != StatusFinished {
		t.Errorf("got %q %s", trig, m.Status)
	}
	if m.StartedAt != nil {
		t.Error("started_at set on a match finished from pending")
	}
}

func TestResolveRejects(t *testing.T) {
	m, a, b := pair()
	if _, err := Resolve(m, []*Player{a, b}, 99, OutcomeWin, t0); !errors.Is(err, ErrForbidden) {
		t.Errorf("unknown reporter: %v", err)
	}
	if _, err := Resolve(m, []*Player{a, b}, a.ID, Outcome("tie"), t0); !errors.Is(err, ErrValidation) {
		t.Errorf("bad outcome: %v", err)
	}
}

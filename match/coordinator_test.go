package match_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/icco/minesduel"
	"github.com/icco/minesduel/match"
	"github.com/icco/minesduel/store"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*match.Coordinator, *clockwork.FakeClock) {
	t.Helper()

	db, err := store.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := clockwork.NewFakeClockAt(t0)
	return match.New(db, match.Options{Clock: clock}), clock
}

func ms(v int64) *int64 { return &v }

// duel creates a match for alice and seats bob.
func duel(t *testing.T, c *match.Coordinator) (a, b *match.Created) {
	t.Helper()
	ctx := context.Background()

	a, err := c.Create(ctx, match.CreateParams{Width: 10, Height: 10, Mines: 10, Name: "alice"})
	require.NoError(t, err)
	b, err = c.Join(ctx, a.MatchID, match.JoinParams{Name: "bob"})
	require.NoError(t, err)
	return a, b
}

func started(t *testing.T, c *match.Coordinator) (a, b *match.Created) {
	t.Helper()
	ctx := context.Background()

	a, b = duel(t, c)
	_, err := c.SetReady(ctx, a.MatchID, a.Token, true)
	require.NoError(t, err)
	_, err = c.SetReady(ctx, a.MatchID, b.Token, true)
	require.NoError(t, err)
	return a, b
}

func playerNamed(t *testing.T, st *match.MatchState, name string) match.PlayerState {
	t.Helper()
	for _, p := range st.Players {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("no player %q", name)
	return match.PlayerState{}
}

func TestEndToEnd(t *testing.T) {
	c, clock := setup(t)
	ctx := context.Background()

	a, err := c.Create(ctx, match.CreateParams{Width: 10, Height: 10, Mines: 10, Name: "alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.Token)
	assert.NotEmpty(t, a.Board.Seed)
	assert.Equal(t, minesduel.DefaultCountdownSecs, a.CountdownSecs)

	st, err := c.State(ctx, a.MatchID)
	require.NoError(t, err)
	assert.Equal(t, minesduel.StatusPending, st.Status)

	b, err := c.Join(ctx, a.MatchID, match.JoinParams{Name: "bob"})
	require.NoError(t, err)
	assert.NotEqual(t, a.Token, b.Token)
	assert.Equal(t, a.Board, b.Board)

	ready, err := c.SetReady(ctx, a.MatchID, a.Token, true)
	require.NoError(t, err)
	assert.Equal(t, minesduel.StatusPending, ready.Status)
	assert.Nil(t, ready.StartedAt)

	ready, err = c.SetReady(ctx, a.MatchID, b.Token, true)
	require.NoError(t, err)
	assert.Equal(t, minesduel.StatusActive, ready.Status)
	require.NotNil(t, ready.StartedAt)
	assert.True(t, ready.StartedAt.Equal(t0.Add(10*time.Second)))

	clock.Advance(11 * time.Second)
	require.NoError(t, c.SubmitStep(ctx, a.MatchID, a.Token, match.StepParams{Action: minesduel.ActionReveal}))
	require.NoError(t, c.SubmitStep(ctx, a.MatchID, b.Token, match.StepParams{Action: minesduel.ActionFlag, X: 3, Y: 3}))

	steps, err := c.Steps(ctx, a.MatchID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "alice", steps[0].PlayerName)
	assert.Equal(t, 1, steps[0].Seq)
	assert.Equal(t, "bob", steps[1].PlayerName)
	assert.Equal(t, 1, steps[1].Seq)
	assert.Equal(t, minesduel.ActionFlag, steps[1].Action)

	require.NoError(t, c.Finish(ctx, a.MatchID, a.Token, match.FinishParams{Outcome: minesduel.OutcomeWin, DurationMs: ms(5000)}))

	st, err = c.State(ctx, a.MatchID)
	require.NoError(t, err)
	assert.Equal(t, minesduel.StatusFinished, st.Status)
	require.NotNil(t, st.EndedAt)

	alice, bob := playerNamed(t, st, "alice"), playerNamed(t, st, "bob")
	assert.Equal(t, minesduel.OutcomeWin, *alice.Result)
	assert.Equal(t, int64(5000), *alice.DurationMs)
	assert.Equal(t, 1, alice.StepsCount)
	assert.Equal(t, minesduel.OutcomeLose, *bob.Result)
	assert.NotNil(t, bob.FinishedAt)

	players := []*minesduel.Player{
		{ID: bob.ID, Result: bob.Result, DurationMs: bob.DurationMs, FinishedAt: bob.FinishedAt},
		{ID: alice.ID, Result: alice.Result, DurationMs: alice.DurationMs, FinishedAt: alice.FinishedAt},
	}
	standings := minesduel.Standings(players)
	assert.Equal(t, alice.ID, standings[0].Player.ID)
	assert.Equal(t, 1, standings[0].Rank)
	assert.Equal(t, 2, standings[1].Rank)
}

func TestJoinRejects(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	_, err := c.Join(ctx, 404, match.JoinParams{Name: "bob"})
	assert.ErrorIs(t, err, minesduel.ErrNotFound)

	uid := int64(7)
	a, err := c.Create(ctx, match.CreateParams{Width: 5, Height: 5, Mines: 3, Name: "alice", UserID: &uid})
	require.NoError(t, err)

	_, err = c.Join(ctx, a.MatchID, match.JoinParams{Name: "alice2", UserID: &uid})
	assert.ErrorIs(t, err, minesduel.ErrConflict, "self join")

	_, err = c.Join(ctx, a.MatchID, match.JoinParams{Name: "alice"})
	assert.ErrorIs(t, err, minesduel.ErrConflict, "name clash")

	_, err = c.Join(ctx, a.MatchID, match.JoinParams{Name: "bob"})
	require.NoError(t, err)

	_, err = c.Join(ctx, a.MatchID, match.JoinParams{Name: "carol"})
	assert.ErrorIs(t, err, minesduel.ErrConflict, "full")

	st, err := c.State(ctx, a.MatchID)
	require.NoError(t, err)
	assert.Len(t, st.Players, 2)
}

func TestJoinFinished(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	a, err := c.Create(ctx, match.CreateParams{Width: 5, Height: 5, Mines: 3, Name: "alice"})
	require.NoError(t, err)
	require.NoError(t, c.Finish(ctx, a.MatchID, a.Token, match.FinishParams{Outcome: minesduel.OutcomeForfeit}))

	st, err := c.State(ctx, a.MatchID)
	require.NoError(t, err)
	assert.Equal(t, minesduel.StatusFinished, st.Status)
	assert.Nil(t, st.StartedAt)

	_, err = c.Join(ctx, a.MatchID, match.JoinParams{Name: "bob"})
	assert.ErrorIs(t, err, minesduel.ErrConflict)
}

func TestCreateValidation(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	for name, p := range map[string]match.CreateParams{
		"zero width": {Width: 0, Height: 5, Mines: 1, Name: "a"},
		"no mines":   {Width: 5, Height: 5, Mines: 0, Name: "a"},
		"full board": {Width: 5, Height: 5, Mines: 25, Name: "a"},
		"huge board": {Width: 500, Height: 5, Mines: 1, Name: "a"},
		"countdown":  {Width: 5, Height: 5, Mines: 1, CountdownSecs: -1, Name: "a"},
		"no name":    {Width: 5, Height: 5, Mines: 1},
		"long diff":  {Width: 5, Height: 5, Mines: 1, Name: "a", Difficulty: "a very very very long difficulty label"},
	} {
		_, err := c.Create(ctx, p)
		assert.ErrorIs(t, err, minesduel.ErrValidation, name)
	}

	created, err := c.Create(ctx, match.CreateParams{Width: 9, Height: 9, Mines: 10, Seed: "abc", Difficulty: "easy", CountdownSecs: 60, Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, "abc", created.Board.Seed)
	assert.Equal(t, 60, created.CountdownSecs)
}

func TestSetReadyRejects(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()
	a, b := duel(t, c)

	_, err := c.SetReady(ctx, a.MatchID, "nope", true)
	assert.ErrorIs(t, err, minesduel.ErrForbidden)

	other, err := c.Create(ctx, match.CreateParams{Width: 5, Height: 5, Mines: 3, Name: "carol"})
	require.NoError(t, err)
	_, err = c.SetReady(ctx, a.MatchID, other.Token, true)
	assert.ErrorIs(t, err, minesduel.ErrForbidden, "token from another match")

	require.NoError(t, c.Finish(ctx, a.MatchID, b.Token, match.FinishParams{Outcome: minesduel.OutcomeLose}))
	_, err = c.SetReady(ctx, a.MatchID, a.Token, true)
	assert.ErrorIs(t, err, minesduel.ErrConflict)
}

func TestUnreadyBlocksStart(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()
	a, b := duel(t, c)

	_, err := c.SetReady(ctx, a.MatchID, a.Token, true)
	require.NoError(t, err)
	_, err = c.SetReady(ctx, a.MatchID, a.Token, false)
	require.NoError(t, err)
	ready, err := c.SetReady(ctx, a.MatchID, b.Token, true)
	require.NoError(t, err)
	assert.Equal(t, minesduel.StatusPending, ready.Status)
}

func TestStepActivatesPending(t *testing.T) {
	c, clock := setup(t)
	ctx := context.Background()

	a, err := c.Create(ctx, match.CreateParams{Width: 5, Height: 5, Mines: 3, Name: "alice"})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	require.NoError(t, c.SubmitStep(ctx, a.MatchID, a.Token, match.StepParams{Action: minesduel.ActionChord, X: 1, Y: 2, ElapsedMs: ms(30)}))

	st, err := c.State(ctx, a.MatchID)
	require.NoError(t, err)
	assert.Equal(t, minesduel.StatusActive, st.Status)
	require.NotNil(t, st.StartedAt)
	assert.True(t, st.StartedAt.Equal(t0.Add(time.Minute)), "no grace period")
}

func TestStepRejects(t *testing.T) {
	c, clock := setup(t)
	ctx := context.Background()
	a, _ := started(t, c)

	err := c.SubmitStep(ctx, a.MatchID, a.Token, match.StepParams{Action: "dig"})
	assert.ErrorIs(t, err, minesduel.ErrValidation)

	err = c.SubmitStep(ctx, a.MatchID, a.Token, match.StepParams{Action: minesduel.ActionReveal, X: -1})
	assert.ErrorIs(t, err, minesduel.ErrValidation)

	err = c.SubmitStep(ctx, a.MatchID, "bogus", match.StepParams{Action: minesduel.ActionReveal})
	assert.ErrorIs(t, err, minesduel.ErrForbidden)

	clock.Advance(time.Hour)
	err = c.SubmitStep(ctx, a.MatchID, a.Token, match.StepParams{Action: minesduel.ActionReveal})
	assert.ErrorIs(t, err, minesduel.ErrConflict)

	// The rejected step still committed the timeout.
	st, err := c.State(ctx, a.MatchID)
	require.NoError(t, err)
	assert.Equal(t, minesduel.StatusFinished, st.Status)
}

func TestStepSeqIsGapless(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()
	a, b := started(t, c)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.SubmitStep(ctx, a.MatchID, a.Token, match.StepParams{Action: minesduel.ActionReveal, X: i}))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, c.SubmitStep(ctx, a.MatchID, b.Token, match.StepParams{Action: minesduel.ActionFlag, Y: i}))
		}()
	}
	wg.Wait()

	steps, err := c.Steps(ctx, a.MatchID)
	require.NoError(t, err)
	require.Len(t, steps, 2*n)

	seqs := map[string][]int{}
	for _, s := range steps {
		seqs[s.PlayerName] = append(seqs[s.PlayerName], s.Seq)
	}
	for name, got := range seqs {
		seen := map[int]bool{}
		for _, s := range got {
			assert.False(t, seen[s], "%s: duplicate seq %d", name, s)
			seen[s] = true
		}
		for i := 1; i <= n; i++ {
			assert.True(t, seen[i], "%s: missing seq %d", name, i)
		}
	}

	st, err := c.State(ctx, a.MatchID)
	require.NoError(t, err)
	for _, p := range st.Players {
		assert.Equal(t, n, p.StepsCount)
	}
}

func TestConcurrentWins(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()
	a, b := started(t, c)

	var wg sync.WaitGroup
	for _, tok := range []string{a.Token, b.Token} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Finish(ctx, a.MatchID, tok, match.FinishParams{Outcome: minesduel.OutcomeWin}))
		}()
	}
	wg.Wait()

	st, err := c.State(ctx, a.MatchID)
	require.NoError(t, err)
	results := map[minesduel.Outcome]int{}
	for _, p := range st.Players {
		results[*p.Result]++
	}
	assert.Equal(t, map[minesduel.Outcome]int{minesduel.OutcomeWin: 1, minesduel.OutcomeLose: 1}, results)
}

func TestDrawWaitsForOpponent(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()
	a, b := started(t, c)

	require.NoError(t, c.Finish(ctx, a.MatchID, a.Token, match.FinishParams{Outcome: minesduel.OutcomeDraw}))
	st, err := c.State(ctx, a.MatchID)
	require.NoError(t, err)
	assert.Equal(t, minesduel.StatusActive, st.Status)
	assert.Nil(t, playerNamed(t, st, "bob").Result)

	require.NoError(t, c.Finish(ctx, a.MatchID, b.Token, match.FinishParams{Outcome: minesduel.OutcomeForfeit}))
	st, err = c.State(ctx, a.MatchID)
	require.NoError(t, err)
	assert.Equal(t, minesduel.StatusFinished, st.Status)
	assert.Equal(t, minesduel.OutcomeDraw, *playerNamed(t, st, "alice").Result)
	assert.Equal(t, minesduel.OutcomeForfeit, *playerNamed(t, st, "bob").Result)
}

func TestFinishIdempotent(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()
	a, b := started(t, c)

	require.NoError(t, c.Finish(ctx, a.MatchID, b.Token, match.FinishParams{Outcome: minesduel.OutcomeLose, StepsCount: new(int)}))

	snapshot := json.RawMessage(`{"revealed":12}`)
	require.NoError(t, c.Finish(ctx, a.MatchID, a.Token, match.FinishParams{Outcome: minesduel.OutcomeLose, Progress: snapshot}))
	require.NoError(t, c.Finish(ctx, a.MatchID, a.Token, match.FinishParams{Outcome: minesduel.OutcomeLose, Progress: json.RawMessage(`{"revealed":99}`)}))
	require.NoError(t, c.Finish(ctx, a.MatchID, b.Token, match.FinishParams{Outcome: minesduel.OutcomeWin}))

	st, err := c.State(ctx, a.MatchID)
	require.NoError(t, err)
	alice, bob := playerNamed(t, st, "alice"), playerNamed(t, st, "bob")
	assert.Equal(t, minesduel.OutcomeWin, *alice.Result, "cascaded result kept")
	assert.JSONEq(t, `{"revealed":12}`, string(alice.Progress), "progress attached once")
	assert.Equal(t, minesduel.OutcomeLose, *bob.Result)
}

func TestFinishRejects(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()
	a, _ := started(t, c)

	err := c.Finish(ctx, a.MatchID, "nope", match.FinishParams{Outcome: minesduel.OutcomeWin})
	assert.ErrorIs(t, err, minesduel.ErrForbidden)

	err = c.Finish(ctx, a.MatchID, a.Token, match.FinishParams{Outcome: "tie"})
	assert.ErrorIs(t, err, minesduel.ErrValidation)

	err = c.Finish(ctx, a.MatchID, a.Token, match.FinishParams{Outcome: minesduel.OutcomeWin, Progress: json.RawMessage(`{`)})
	assert.ErrorIs(t, err, minesduel.ErrValidation)

	err = c.Finish(ctx, a.MatchID, a.Token, match.FinishParams{Outcome: minesduel.OutcomeWin, DurationMs: ms(-1)})
	assert.ErrorIs(t, err, minesduel.ErrValidation)
}

func TestTimeoutFull(t *testing.T) {
	c, clock := setup(t)
	ctx := context.Background()
	a, _ := started(t, c)

	st, err := c.State(ctx, a.MatchID)
	require.NoError(t, err)
	start := *st.StartedAt

	clock.Advance(start.Sub(clock.Now()) + 301*time.Second)
	st, err = c.State(ctx, a.MatchID)
	require.NoError(t, err)

	assert.Equal(t, minesduel.StatusFinished, st.Status)
	require.NotNil(t, st.EndedAt)
	for _, p := range st.Players {
		require.NotNil(t, p.Result)
		assert.Equal(t, minesduel.OutcomeDraw, *p.Result)
		assert.NotNil(t, p.FinishedAt)
	}
}

func TestTimeoutPartial(t *testing.T) {
	c, clock := setup(t)
	ctx := context.Background()
	a, _ := started(t, c)

	st, err := c.State(ctx, a.MatchID)
	require.NoError(t, err)
	start := *st.StartedAt

	clock.Advance(start.Sub(clock.Now()) + 50*time.Second)
	require.NoError(t, c.Finish(ctx, a.MatchID, a.Token, match.FinishParams{Outcome: minesduel.OutcomeForfeit}))

	clock.Advance(251 * time.Second)
	st, err = c.State(ctx, a.MatchID)
	require.NoError(t, err)
	assert.Equal(t, minesduel.StatusFinished, st.Status)
	assert.Equal(t, minesduel.OutcomeForfeit, *playerNamed(t, st, "alice").Result)
	assert.Equal(t, minesduel.OutcomeLose, *playerNamed(t, st, "bob").Result)
}

func TestDeleteGuard(t *testing.T) {
	c, clock := setup(t)
	ctx := context.Background()

	a, b := duel(t, c)
	assert.ErrorIs(t, c.Delete(ctx, a.MatchID, a.Token), minesduel.ErrConflict, "two players")
	assert.ErrorIs(t, c.Delete(ctx, a.MatchID, b.Token), minesduel.ErrConflict, "two players")

	solo, err := c.Create(ctx, match.CreateParams{Width: 5, Height: 5, Mines: 3, Name: "alice"})
	require.NoError(t, err)
	require.NoError(t, c.SubmitStep(ctx, solo.MatchID, solo.Token, match.StepParams{Action: minesduel.ActionReveal}))
	clock.Advance(time.Second)
	assert.ErrorIs(t, c.Delete(ctx, solo.MatchID, solo.Token), minesduel.ErrConflict, "started")

	fresh, err := c.Create(ctx, match.CreateParams{Width: 5, Height: 5, Mines: 3, Name: "alice"})
	require.NoError(t, err)
	assert.ErrorIs(t, c.Delete(ctx, fresh.MatchID, "nope"), minesduel.ErrForbidden)
	require.NoError(t, c.Delete(ctx, fresh.MatchID, fresh.Token))

	_, err = c.State(ctx, fresh.MatchID)
	assert.ErrorIs(t, err, minesduel.ErrNotFound)
	_, err = c.Steps(ctx, fresh.MatchID)
	assert.ErrorIs(t, err, minesduel.ErrNotFound)
}

func TestHistoryAndRecent(t *testing.T) {
	c, clock := setup(t)
	ctx := context.Background()

	first, _ := started(t, c)
	clock.Advance(time.Second)
	second, _ := duel(t, c)
	clock.Advance(time.Second)
	_, err := c.Create(ctx, match.CreateParams{Width: 5, Height: 5, Mines: 3, Name: "carol"})
	require.NoError(t, err)

	clock.Advance(time.Hour)

	hist, err := c.History(ctx, "bob", 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, second.MatchID, hist[0].MatchID)
	assert.Equal(t, minesduel.StatusPending, hist[0].Status)
	assert.Equal(t, first.MatchID, hist[1].MatchID)
	assert.Equal(t, minesduel.StatusFinished, hist[1].Status, "swept before listing")
	assert.Equal(t, minesduel.OutcomeDraw, *hist[1].Result)

	recent, err := c.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "carol", recent[0].Players[0].Name)
	assert.Equal(t, second.MatchID, recent[1].MatchID)
	assert.Len(t, recent[1].Players, 2)

	none, err := c.History(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icco/minesduel"
	"github.com/icco/minesduel/match"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fakeServer(t *testing.T, ready *bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /match/7/state", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(match.MatchState{
			ID:     7,
			Status: minesduel.StatusPending,
			Board:  match.Board{Width: 9, Height: 9, Mines: 10},
			Players: []match.PlayerState{
				{ID: 1, Name: "alice", Ready: *ready},
				{ID: 2, Name: "bob"},
			},
		})
	})
	mux.HandleFunc("POST /match/7/ready", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"player_token"`
			Ready bool   `json:"ready"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Token != "secret" {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(apiError{Error: "invalid player token"})
			return
		}
		*ready = req.Ready
		json.NewEncoder(w).Encode(match.ReadyState{Status: minesduel.StatusPending, CountdownSecs: 300})
	})
	mux.HandleFunc("GET /match/8/state", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient(t *testing.T) {
	ready := false
	srv := fakeServer(t, &ready)
	api := newClient(srv.URL + "/")
	ctx := t.Context()

	st, err := api.state(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, minesduel.StatusPending, st.Status)
	assert.Len(t, st.Players, 2)

	_, err = api.setReady(ctx, 7, "secret", true)
	require.NoError(t, err)
	assert.True(t, ready)

	_, err = api.setReady(ctx, 7, "wrong", false)
	assert.ErrorContains(t, err, "invalid player token")

	_, err = api.state(ctx, 8)
	assert.ErrorContains(t, err, "status 404")
}

func TestModelReadyFlow(t *testing.T) {
	ready := false
	srv := fakeServer(t, &ready)
	m := newModel(newClient(srv.URL), options{Match: 7, Token: "secret", Name: "alice", Interval: time.Second})

	next, _ := m.Update(m.fetch())
	m = next.(model)
	require.NotNil(t, m.state)
	assert.False(t, m.ready)
	assert.Len(t, m.seats.Rows(), 2)
	assert.Contains(t, m.View(), "pending")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	m = next.(model)
	require.NotNil(t, cmd)
	next, _ = m.Update(cmd())
	m = next.(model)
	assert.True(t, m.ready)
	assert.True(t, ready)
}

func TestModelWithoutToken(t *testing.T) {
	ready := false
	srv := fakeServer(t, &ready)
	m := newModel(newClient(srv.URL), options{Match: 7, Interval: time.Second})

	next, _ := m.Update(m.fetch())
	m = next.(model)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Nil(t, cmd)
	assert.False(t, ready)
}

func TestModelShowsErrors(t *testing.T) {
	ready := false
	srv := fakeServer(t, &ready)
	m := newModel(newClient(srv.URL), options{Match: 8, Interval: time.Second})

	next, _ := m.Update(m.fetch())
	m = next.(model)
	assert.Error(t, m.err)
	assert.Contains(t, m.View(), "status 404")
}

func TestCountdown(t *testing.T) {
	start := t0.Add(3 * time.Second)
	st := &match.MatchState{Status: minesduel.StatusPending, CountdownSecs: 300}

	assert.Equal(t, "waiting for both players", countdown(st, t0))

	st.StartedAt = &start
	assert.Equal(t, "starts in 3s", countdown(st, t0))

	st.Status = minesduel.StatusActive
	assert.Equal(t, "4m50s left", countdown(st, start.Add(10*time.Second)))
	assert.Equal(t, "0s left", countdown(st, start.Add(time.Hour)))

	st.Status = minesduel.StatusFinished
	assert.Equal(t, "", countdown(st, start.Add(time.Minute)))
}

func TestSeatRows(t *testing.T) {
	won := minesduel.OutcomeWin
	ms := int64(61500)
	rows := seatRows(&match.MatchState{Players: []match.PlayerState{
		{Name: "alice", Ready: true, StepsCount: 12, Result: &won, DurationMs: &ms},
	}})
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"alice", "yes", "12", "win", "1m1.5s"}, []string(rows[0]))
}

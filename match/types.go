package match

import (
	"encoding/json"
	"time"

	"github.com/icco/minesduel"
)

// CreateParams describes a new match and the player opening it.
type CreateParams struct {
	Width         int
	Height        int
	Mines         int
	Seed          string
	Difficulty    string
	CountdownSecs int

	Name   string
	UserID *int64
}

// JoinParams identifies the player taking the second seat.
type JoinParams struct {
	Name   string
	UserID *int64
}

// StepParams is one board action.
type StepParams struct {
	Action    minesduel.Action
	X         int
	Y         int
	ElapsedMs *int64
}

// FinishParams is a player's final report.
type FinishParams struct {
	Outcome    minesduel.Outcome
	DurationMs *int64
	StepsCount *int
	Progress   json.RawMessage
}

// Board is what a client needs to generate the same field as its opponent.
type Board struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Mines  int    `json:"mines"`
	Seed   string `json:"seed"`
}

func boardOf(m *minesduel.Match) Board {
	return Board{Width: m.Width, Height: m.Height, Mines: m.Mines, Seed: m.Seed}
}

// Created is returned to the player that opened or joined a match. Token is
// only ever handed out here.
type Created struct {
	MatchID       int64  `json:"match_id"`
	PlayerID      int64  `json:"player_id"`
	Token         string `json:"player_token"`
	Board         Board  `json:"board"`
	CountdownSecs int    `json:"countdown_secs"`
}

// ReadyState reports the match after a ready toggle.
type ReadyState struct {
	Status        minesduel.Status `json:"status"`
	StartedAt     *time.Time       `json:"started_at"`
	CountdownSecs int              `json:"countdown_secs"`
}

// PlayerState is the public view of a seat.
type PlayerState struct {
	ID         int64              `json:"id"`
	Name       string             `json:"name"`
	Result     *minesduel.Outcome `json:"result"`
	DurationMs *int64             `json:"duration_ms"`
	StepsCount int                `json:"steps_count"`
	FinishedAt *time.Time         `json:"finished_at"`
	Ready      bool               `json:"ready"`
	Progress   json.RawMessage    `json:"progress,omitempty"`
}

// MatchState is a polled snapshot of a match.
type MatchState struct {
	ID            int64            `json:"id"`
	Status        minesduel.Status `json:"status"`
	Board         Board            `json:"board"`
	Difficulty    *string          `json:"difficulty"`
	CountdownSecs int              `json:"countdown_secs"`
	CreatedAt     time.Time        `json:"created_at"`
	StartedAt     *time.Time       `json:"started_at"`
	EndedAt       *time.Time       `json:"ended_at"`
	Players       []PlayerState    `json:"players"`
}

func stateOf(m *minesduel.Match, players []*minesduel.Player) MatchState {
	st := MatchState{
		ID:            m.ID,
		Status:        m.Status,
		Board:         boardOf(m),
		Difficulty:    m.Difficulty,
		CountdownSecs: m.CountdownSecs,
		CreatedAt:     m.CreatedAt,
		StartedAt:     m.StartedAt,
		EndedAt:       m.EndedAt,
		Players:       make([]PlayerState, 0, len(players)),
	}
	for _, p := range players {
		st.Players = append(st.Players, PlayerState{
			ID:         p.ID,
			Name:       p.Name,
			Result:     p.Result,
			DurationMs: p.DurationMs,
			StepsCount: p.StepsCount,
			FinishedAt: p.FinishedAt,
			Ready:      p.Ready,
			Progress:   json.RawMessage(p.Progress),
		})
	}
	return st
}

// StepView is a logged step as shown in a replay.
type StepView struct {
	PlayerName string           `json:"player_name"`
	Action     minesduel.Action `json:"action"`
	X          int              `json:"x"`
	Y          int              `json:"y"`
	ElapsedMs  *int64           `json:"elapsed_ms"`
	Seq        int              `json:"seq"`
	CreatedAt  time.Time        `json:"created_at"`
}

// HistoryItem summarizes one match from a single player's point of view.
type HistoryItem struct {
	MatchID    int64              `json:"match_id"`
	Status     minesduel.Status   `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
	EndedAt    *time.Time         `json:"ended_at"`
	Difficulty *string            `json:"difficulty"`
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	Mines      int                `json:"mines"`
	Result     *minesduel.Outcome `json:"result"`
	DurationMs *int64             `json:"duration_ms"`
}

// RecentPlayer is a seat in a RecentItem.
type RecentPlayer struct {
	Name   string             `json:"name"`
	Result *minesduel.Outcome `json:"result"`
	Ready  bool               `json:"ready"`
}

// RecentItem is a match in the recent list.
type RecentItem struct {
	MatchID    int64            `json:"match_id"`
	Status     minesduel.Status `json:"status"`
	Difficulty *string          `json:"difficulty"`
	CreatedAt  time.Time        `json:"created_at"`
	StartedAt  *time.Time       `json:"started_at"`
	EndedAt    *time.Time       `json:"ended_at"`
	Players    []RecentPlayer   `json:"players"`
}

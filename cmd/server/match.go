package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/icco/minesduel"
	"github.com/icco/minesduel/match"
)

func (s *server) matchRoutes() http.Handler {
	r := chi.NewRouter()

	r.Get("/history", s.historyHandler)
	r.Get("/recent", s.recentHandler)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/", s.createMatchHandler)
		r.Post("/{id}/join", s.joinMatchHandler)
	})

	r.Post("/{id}/ready", s.readyHandler)
	r.Get("/{id}/state", s.stateHandler)
	r.Post("/{id}/step", s.stepHandler)
	r.Post("/{id}/finish", s.finishHandler)
	r.Delete("/{id}", s.deleteMatchHandler)
	r.Get("/{id}/steps", s.stepsHandler)

	return r
}

func matchID(r *http.Request) (int64, error) {
	raw := ugcPolicy.Sanitize(chi.URLParam(r, "id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, minesduel.NotFoundf("match %q not found", raw)
	}
	return id, nil
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return minesduel.Invalidf("invalid request body")
	}
	return nil
}

func limitParam(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return limit
}

// CreateMatchRequest describes the board of a new match.
type CreateMatchRequest struct {
	Width         int    `json:"width" example:"10"`
	Height        int    `json:"height" example:"10"`
	Mines         int    `json:"mines" example:"10"`
	Seed          string `json:"seed,omitempty" example:"a1b2c3d4"`
	Difficulty    string `json:"difficulty,omitempty" example:"beginner"`
	CountdownSecs int    `json:"countdown_secs,omitempty" example:"300"`
}

// @Summary Create a match
// @Description Opens a pending match and seats the caller. The returned player_token is the only credential for acting in the match.
// @Tags match
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param match body CreateMatchRequest true "Board"
// @Success 200 {object} match.Created
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /match [post]
func (s *server) createMatchHandler(w http.ResponseWriter, r *http.Request) {
	user := getMustUserFromContext(r)

	var req CreateMatchRequest
	if err := decode(r, &req); err != nil {
		renderError(w, r, err)
		return
	}

	created, err := s.matches.Create(r.Context(), match.CreateParams{
		Width:         req.Width,
		Height:        req.Height,
		Mines:         req.Mines,
		Seed:          ugcPolicy.Sanitize(req.Seed),
		Difficulty:    ugcPolicy.Sanitize(req.Difficulty),
		CountdownSecs: req.CountdownSecs,
		Name:          user.Handle,
		UserID:        &user.ID,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, created)
}

// @Summary Join a match
// @Description Takes the second seat of a pending or active match
// @Tags match
// @Produce json
// @Security BearerAuth
// @Param id path int true "Match ID"
// @Success 200 {object} match.Created
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /match/{id}/join [post]
func (s *server) joinMatchHandler(w http.ResponseWriter, r *http.Request) {
	user := getMustUserFromContext(r)
	id, err := matchID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	joined, err := s.matches.Join(r.Context(), id, match.JoinParams{Name: user.Handle, UserID: &user.ID})
	if err != nil {
		renderError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, joined)
}

// ReadyRequest toggles a player's ready flag.
type ReadyRequest struct {
	Token string `json:"player_token"`
	Ready bool   `json:"ready" example:"true"`
}

// @Summary Set ready
// @Description Marks a player ready. Once both players are ready the match starts after a short grace period.
// @Tags match
// @Accept json
// @Produce json
// @Param id path int true "Match ID"
// @Param ready body ReadyRequest true "Ready flag"
// @Success 200 {object} match.ReadyState
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /match/{id}/ready [post]
func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	id, err := matchID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	var req ReadyRequest
	if err := decode(r, &req); err != nil {
		renderError(w, r, err)
		return
	}

	st, err := s.matches.SetReady(r.Context(), id, req.Token, req.Ready)
	if err != nil {
		renderError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, st)
}

// @Summary Match state
// @Description Polled by clients to follow a match. Applies any expired countdown first.
// @Tags match
// @Produce json
// @Param id path int true "Match ID"
// @Success 200 {object} match.MatchState
// @Failure 404 {object} ErrorResponse
// @Router /match/{id}/state [get]
func (s *server) stateHandler(w http.ResponseWriter, r *http.Request) {
	id, err := matchID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	st, err := s.matches.State(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, st)
}

// StepRequest is one board action.
type StepRequest struct {
	Token     string `json:"player_token"`
	Action    string `json:"action" example:"reveal"`
	X         int    `json:"x" example:"3"`
	Y         int    `json:"y" example:"4"`
	ElapsedMs *int64 `json:"elapsed_ms,omitempty" example:"1520"`
}

// @Summary Submit a step
// @Description Logs a reveal, flag or chord. A step on a pending match starts it immediately.
// @Tags match
// @Accept json
// @Produce json
// @Param id path int true "Match ID"
// @Param step body StepRequest true "Step"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /match/{id}/step [post]
func (s *server) stepHandler(w http.ResponseWriter, r *http.Request) {
	id, err := matchID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	var req StepRequest
	if err := decode(r, &req); err != nil {
		renderError(w, r, err)
		return
	}

	err = s.matches.SubmitStep(r.Context(), id, req.Token, match.StepParams{
		Action:    minesduel.Action(req.Action),
		X:         req.X,
		Y:         req.Y,
		ElapsedMs: req.ElapsedMs,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, okResponse)
}

// FinishRequest is a player's final report.
type FinishRequest struct {
	Token      string          `json:"player_token"`
	Outcome    string          `json:"outcome" example:"win"`
	DurationMs *int64          `json:"duration_ms,omitempty" example:"48000"`
	StepsCount *int            `json:"steps_count,omitempty" example:"57"`
	Progress   json.RawMessage `json:"progress,omitempty" swaggertype:"object"`
}

// @Summary Finish
// @Description Reports the caller's outcome. Win and lose decide the opponent's result too; draw and forfeit wait for the opponent. Repeating it is a no-op.
// @Tags match
// @Accept json
// @Produce json
// @Param id path int true "Match ID"
// @Param finish body FinishRequest true "Outcome"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /match/{id}/finish [post]
func (s *server) finishHandler(w http.ResponseWriter, r *http.Request) {
	id, err := matchID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	var req FinishRequest
	if err := decode(r, &req); err != nil {
		renderError(w, r, err)
		return
	}

	err = s.matches.Finish(r.Context(), id, req.Token, match.FinishParams{
		Outcome:    minesduel.Outcome(req.Outcome),
		DurationMs: req.DurationMs,
		StepsCount: req.StepsCount,
		Progress:   req.Progress,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, okResponse)
}

// DeleteRequest carries the token of the match creator.
type DeleteRequest struct {
	Token string `json:"player_token"`
}

// @Summary Delete a match
// @Description Removes a match nobody joined that has not started. The token can be sent as a query parameter or in the body.
// @Tags match
// @Accept json
// @Produce json
// @Param id path int true "Match ID"
// @Param player_token query string false "Player token"
// @Param body body DeleteRequest false "Player token"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /match/{id} [delete]
func (s *server) deleteMatchHandler(w http.ResponseWriter, r *http.Request) {
	id, err := matchID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	req := DeleteRequest{Token: r.URL.Query().Get("player_token")}
	if req.Token == "" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			renderError(w, r, minesduel.Invalidf("invalid request body"))
			return
		}
	}

	if err := s.matches.Delete(r.Context(), id, req.Token); err != nil {
		renderError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, okResponse)
}

// @Summary List steps
// @Description Every logged step of a match in arrival order, for replays
// @Tags match
// @Produce json
// @Param id path int true "Match ID"
// @Success 200 {array} match.StepView
// @Failure 404 {object} ErrorResponse
// @Router /match/{id}/steps [get]
func (s *server) stepsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := matchID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	steps, err := s.matches.Steps(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, steps)
}

// @Summary Match history
// @Description Matches a player sat in, newest first, with that player's result
// @Tags match
// @Produce json
// @Param player query string true "Player handle"
// @Param limit query int false "Maximum number of matches (default 20, max 100)"
// @Success 200 {array} match.HistoryItem
// @Failure 400 {object} ErrorResponse
// @Router /match/history [get]
func (s *server) historyHandler(w http.ResponseWriter, r *http.Request) {
	player := ugcPolicy.Sanitize(r.URL.Query().Get("player"))
	if player == "" {
		renderMessage(w, http.StatusBadRequest, "player is required")
		return
	}

	items, err := s.matches.History(r.Context(), player, limitParam(r))
	if err != nil {
		renderError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, items)
}

// @Summary Recent matches
// @Description The newest matches with each seat's name, result and ready flag
// @Tags match
// @Produce json
// @Param limit query int false "Maximum number of matches (default 20, max 100)"
// @Success 200 {array} match.RecentItem
// @Router /match/recent [get]
func (s *server) recentHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.matches.Recent(r.Context(), limitParam(r))
	if err != nil {
		renderError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, items)
}

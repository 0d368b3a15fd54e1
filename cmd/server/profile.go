package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/icco/minesduel/match"
	"github.com/icco/minesduel/ranking"
)

const profileHistorySize = 30

// ProfileResponse is the caller's match history and placement counts. It is
// empty for anonymous callers.
type ProfileResponse struct {
	Handle       string              `json:"handle"`
	MatchHistory []match.HistoryItem `json:"match_history"`
	RankCounts   ranking.Placements  `json:"rank_counts"`
}

func (s *server) profileRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.optionalAuth)
	r.Get("/me", s.profileHandler)
	r.Get("/rankings", s.rankingsHandler)
	return r
}

// @Summary Profile
// @Description The caller's recent matches and how often they placed first, second, third and last
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ProfileResponse
// @Router /profile/me [get]
func (s *server) profileHandler(w http.ResponseWriter, r *http.Request) {
	resp := ProfileResponse{MatchHistory: []match.HistoryItem{}}

	user := getUserFromContext(r)
	if user == nil {
		renderJSON(w, http.StatusOK, resp)
		return
	}
	resp.Handle = user.Handle

	history, err := s.matches.History(r.Context(), user.Handle, profileHistorySize)
	if err != nil {
		renderError(w, r, err)
		return
	}
	resp.MatchHistory = history

	resp.RankCounts, err = s.ranks.Placements(r.Context(), user.ID)
	if err != nil {
		renderError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, resp)
}

// @Summary Ranking board
// @Description Points summed over finished matches for every registered handle. me is filled for authenticated callers.
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ranking.Board
// @Router /profile/rankings [get]
func (s *server) rankingsHandler(w http.ResponseWriter, r *http.Request) {
	var me *int64
	if user := getUserFromContext(r); user != nil {
		me = &user.ID
	}

	board, err := s.ranks.Board(r.Context(), me, ranking.DefaultBoardSize)
	if err != nil {
		renderError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, board)
}

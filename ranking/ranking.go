// Package ranking aggregates finished matches into per-account placement
// counts and the points-based ranking board.
package ranking

import (
	"cmp"
	"context"
	"slices"

	"github.com/icco/minesduel"
)

// Finished is a finished match with all of its players.
type Finished struct {
	Match   *minesduel.Match
	Players []*minesduel.Player
}

// Source provides the records rankings are computed from.
type Source interface {
	// FinishedMatches lists finished matches, only those userID played in
	// when userID is set.
	FinishedMatches(ctx context.Context, userID *int64) ([]Finished, error)
	// Handles maps every registered account id to its handle.
	Handles(ctx context.Context) (map[int64]string, error)
}

// Placements counts how often an account finished first, second, third or
// last. A rank can count twice: second of two is also last.
type Placements struct {
	First  int `json:"first"`
	Second int `json:"second"`
	Third  int `json:"third"`
	Last   int `json:"last"`
}

// Entry is one row of the ranking board.
type Entry struct {
	Handle string `json:"handle"`
	Score  int    `json:"score"`
}

// Board is the ranking board. Me is set when it was requested for an account.
type Board struct {
	Top []Entry `json:"top"`
	Me  *Entry  `json:"me"`
}

// DefaultBoardSize is the number of entries on the board.
const DefaultBoardSize = 20

// Service computes rankings on demand.
type Service struct {
	src Source
}

// New returns a Service reading from src.
func New(src Source) *Service {
	return &Service{src: src}
}

// Placements counts userID's placements over every finished match they
// played.
func (s *Service) Placements(ctx context.Context, userID int64) (Placements, error) {
	var out Placements
	matches, err := s.src.FinishedMatches(ctx, &userID)
	if err != nil {
		return out, err
	}

	for _, f := range matches {
		total := len(f.Players)
		for _, st := range minesduel.Standings(f.Players) {
			uid := st.Player.UserID
			if uid == nil || *uid != userID {
				continue
			}
			switch st.Rank {
			case 1:
				out.First++
			case 2:
				out.Second++
			case 3:
				out.Third++
			}
			if st.Rank == total {
				out.Last++
			}
			break
		}
	}
	return out, nil
}

// Board sums match points per registered handle. Every handle is listed,
// starting from zero. Entries are ordered by score, then handle.
func (s *Service) Board(ctx context.Context, me *int64, limit int) (*Board, error) {
	if limit <= 0 {
		limit = DefaultBoardSize
	}

	handles, err := s.src.Handles(ctx)
	if err != nil {
		return nil, err
	}
	matches, err := s.src.FinishedMatches(ctx, nil)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]int, len(handles))
	for _, h := range handles {
		scores[h] = 0
	}
	for _, f := range matches {
		total := len(f.Players)
		for _, st := range minesduel.Standings(f.Players) {
			if st.Player.UserID == nil {
				continue
			}
			if h, ok := handles[*st.Player.UserID]; ok {
				scores[h] += minesduel.Points(st.Rank, total)
			}
		}
	}

	entries := make([]Entry, 0, len(scores))
	for h, score := range scores {
		entries = append(entries, Entry{Handle: h, Score: score})
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Handle, b.Handle)
	})

	board := &Board{Top: entries[:min(limit, len(entries))]}
	if me != nil {
		if h, ok := handles[*me]; ok {
			board.Me = &Entry{Handle: h, Score: scores[h]}
		}
	}
	return board, nil
}

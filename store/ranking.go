package store

import (
	"context"

	"github.com/icco/minesduel"
	"github.com/icco/minesduel/ranking"
)

// FinishedMatches loads finished matches with their players, restricted to
// matches userID sat in when userID is set.
func (s *Store) FinishedMatches(ctx context.Context, userID *int64) ([]ranking.Finished, error) {
	db := s.db.WithContext(ctx)
	q := db.Where("status = ?", minesduel.StatusFinished)
	if userID != nil {
		q = q.Where("id IN (?)", db.Model(&minesduel.Player{}).Select("match_id").Where("user_id = ?", *userID))
	}

	var matches []minesduel.Match
	if err := q.Preload("Players").Order("id").Find(&matches).Error; err != nil {
		return nil, err
	}

	out := make([]ranking.Finished, 0, len(matches))
	for i := range matches {
		m := &matches[i]
		players := make([]*minesduel.Player, len(m.Players))
		for j := range m.Players {
			players[j] = &m.Players[j]
		}
		out = append(out, ranking.Finished{Match: m, Players: players})
	}
	return out, nil
}

// Handles maps every registered user id to its handle.
func (s *Store) Handles(ctx context.Context) (map[int64]string, error) {
	var users []User
	if err := s.db.WithContext(ctx).Select("id", "handle").Find(&users).Error; err != nil {
		return nil, err
	}

	out := make(map[int64]string, len(users))
	for _, u := range users {
		out[u.ID] = u.Handle
	}
	return out, nil
}

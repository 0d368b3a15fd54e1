package store

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/icco/minesduel"
)

type txn struct {
	db *gorm.DB
}

func (t *txn) LockMatch(id int64) (*minesduel.Match, error) {
	var m minesduel.Match
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, id).Error
	if err != nil {
		return nil, notFound(err, "match %d not found", id)
	}
	return &m, nil
}

func (t *txn) Players(matchID int64) ([]*minesduel.Player, error) {
	var players []*minesduel.Player
	err := t.db.Where("match_id = ?", matchID).Order("id").Find(&players).Error
	return players, err
}

func (t *txn) CreateMatch(m *minesduel.Match) error {
	return t.db.Omit(clause.Associations).Create(m).Error
}

func (t *txn) SaveMatch(m *minesduel.Match) error {
	return t.db.Omit(clause.Associations).Save(m).Error
}

func (t *txn) CreatePlayer(p *minesduel.Player) error {
	return t.db.Omit(clause.Associations).Create(p).Error
}

func (t *txn) SavePlayer(p *minesduel.Player) error {
	return t.db.Omit(clause.Associations).Save(p).Error
}

func (t *txn) LastSeq(matchID, playerID int64) (int, error) {
	var last int
	err := t.db.Model(&minesduel.Step{}).
		Where("match_id = ? AND player_id = ?", matchID, playerID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&last).Error
	return last, err
}

func (t *txn) CreateStep(s *minesduel.Step) error {
	return t.db.Create(s).Error
}

func (t *txn) Steps(matchID int64) ([]minesduel.Step, error) {
	var steps []minesduel.Step
	err := t.db.Where("match_id = ?", matchID).Order("created_at, id").Find(&steps).Error
	return steps, err
}

func (t *txn) DeleteMatch(id int64) error {
	if err := t.db.Where("match_id = ?", id).Delete(&minesduel.Step{}).Error; err != nil {
		return err
	}
	if err := t.db.Where("match_id = ?", id).Delete(&minesduel.Player{}).Error; err != nil {
		return err
	}
	return t.db.Delete(&minesduel.Match{}, id).Error
}

func (t *txn) MatchIDsByPlayerName(name string, limit int) ([]int64, error) {
	var ids []int64
	err := t.db.Model(&minesduel.Player{}).
		Where("name = ?", name).
		Order("match_id DESC").
		Limit(limit).
		Pluck("match_id", &ids).Error
	return ids, err
}

func (t *txn) RecentMatchIDs(limit int) ([]int64, error) {
	var ids []int64
	err := t.db.Model(&minesduel.Match{}).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

package match

import (
	"context"

	"github.com/icco/minesduel"
)

// Store opens transactions over the match records. Everything an operation
// reads and writes goes through a single Tx, which commits when fn returns
// nil and rolls back otherwise.
type Store interface {
	Tx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the set of record operations the coordinator needs inside one
// transaction.
type Tx interface {
	// LockMatch loads a match and holds its row until the transaction ends.
	// An unknown id is an error wrapping minesduel.ErrNotFound.
	LockMatch(id int64) (*minesduel.Match, error)
	Players(matchID int64) ([]*minesduel.Player, error)
	CreateMatch(m *minesduel.Match) error
	SaveMatch(m *minesduel.Match) error
	CreatePlayer(p *minesduel.Player) error
	SavePlayer(p *minesduel.Player) error

	// LastSeq is the highest step seq logged by a player, 0 when none.
	LastSeq(matchID, playerID int64) (int, error)
	CreateStep(s *minesduel.Step) error
	// Steps lists a match's steps oldest first.
	Steps(matchID int64) ([]minesduel.Step, error)

	// DeleteMatch removes a match together with its players and steps.
	DeleteMatch(id int64) error

	// MatchIDsByPlayerName lists matches with a seat under name, newest first.
	MatchIDsByPlayerName(name string, limit int) ([]int64, error)
	// RecentMatchIDs lists the newest matches.
	RecentMatchIDs(limit int) ([]int64, error)
}

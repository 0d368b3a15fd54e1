package minesduel

import (
	"cmp"
	"math"
	"slices"
	"time"
)

// Standing is a player's place in a finished match. Rank 1 is best.
type Standing struct {
	Rank   int
	Player *Player
}

var outcomePriority = map[Outcome]int{
	OutcomeWin:     0,
	OutcomeDraw:    1,
	OutcomeLose:    2,
	OutcomeForfeit: 3,
}

func priority(p *Player) int {
	if p.Result == nil {
		return len(outcomePriority)
	}
	if v, ok := outcomePriority[*p.Result]; ok {
		return v
	}
	return len(outcomePriority)
}

// compareNilLast orders present values before missing ones.
func compareNilLast[T any](a, b *T, compare func(a, b T) int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return compare(*a, *b)
}

func compareStanding(a, b *Player) int {
	if c := cmp.Compare(priority(a), priority(b)); c != 0 {
		return c
	}
	if c := compareNilLast(a.DurationMs, b.DurationMs, cmp.Compare[int64]); c != 0 {
		return c
	}
	return compareNilLast(a.FinishedAt, b.FinishedAt, time.Time.Compare)
}

// Standings ranks the players of a finished match by outcome, then by
// duration (faster first), then by finish time. Players tied on every key
// share a rank and the next rank skips the tied places, so win, draw, draw,
// lose ranks 1, 2, 2, 4.
func Standings(players []*Player) []Standing {
	sorted := slices.Clone(players)
	slices.SortStableFunc(sorted, compareStanding)

	out := make([]Standing, len(sorted))
	for i, p := range sorted {
		rank := i + 1
		if i > 0 && compareStanding(sorted[i-1], p) == 0 {
			rank = out[i-1].Rank
		}
		out[i] = Standing{Rank: rank, Player: p}
	}
	return out
}

var pointTables = map[int][]int{
	2: {10, 2},
	3: {14, 7, 2},
	4: {18, 10, 5, 2},
}

// Points is what finishing at rank in a match of total players is worth on
// the ranking board.
func Points(rank, total int) int {
	if total < 2 || rank < 1 {
		return 0
	}
	if table, ok := pointTables[total]; ok {
		if rank <= len(table) {
			return table[rank-1]
		}
		return 1
	}
	if rank > total {
		return 1
	}

	// Halves round to even.
	v := int(math.RoundToEven(25*math.Pow(1-float64(rank-1)/float64(total), 1.1))) + 1
	return max(v, 1)
}

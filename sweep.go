package minesduel

import "time"

// Sweep finalizes m when its countdown has run out at now. Players without a
// result draw if nobody reported, otherwise they lose; earlier results are
// kept. It reports whether m or any player changed and must be persisted.
//
// There is no timer behind this: a match only times out when a request
// touches it after the deadline.
func Sweep(m *Match, players []*Player, now time.Time) bool {
	if m.Status == StatusFinished {
		return false
	}

	deadline, ok := m.Deadline()
	if !ok || now.Before(deadline) {
		return false
	}

	var open []*Player
	for _, p := range players {
		if p.Result == nil {
			open = append(open, p)
		}
	}

	fill := OutcomeLose
	if len(open) == len(players) {
		fill = OutcomeDraw
	}
	for _, p := range open {
		p.settle(fill, now)
	}

	// Pending and active both accept a timeout, and finished returned above.
	_ = m.Apply(TriggerTimeout, now, 0)
	return true
}

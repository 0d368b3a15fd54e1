package minesduel

import "time"

// Resolve records outcome for the player with id reporterID and cascades it
// to the rest of the match: a win makes every player without a result lose,
// a loss makes them win. Draw and forfeit only touch the reporter, and the
// match finishes once nobody is left without a result.
//
// The returned trigger is the transition applied to m, empty when the match
// stays open. Reporting for a player that already has a result changes
// nothing.
func Resolve(m *Match, players []*Player, reporterID int64, outcome Outcome, now time.Time) (Trigger, error) {
	if _, err := ParseOutcome(string(outcome)); err != nil {
		return "", err
	}

	var reporter *Player
	for _, p := range players {
		if p.ID == reporterID {
			reporter = p
			break
		}
	}
	if reporter == nil {
		return "", Forbiddenf("player %d is not part of match %d", reporterID, m.ID)
	}

	if !reporter.settle(outcome, now) {
		return "", nil
	}

	var cascade Outcome
	switch outcome {
	case OutcomeWin:
		cascade = OutcomeLose
	case OutcomeLose:
		cascade = OutcomeWin
	}

	trigger := TriggerAllReported
	if cascade != "" {
		trigger = TriggerDecisive
		for _, p := range players {
			if p != reporter {
				p.settle(cascade, now)
			}
		}
	} else {
		for _, p := range players {
			if p.Result == nil {
				return "", nil
			}
		}
	}

	if m.Status == StatusFinished {
		return "", nil
	}
	if err := m.Apply(trigger, now, 0); err != nil {
		return "", err
	}
	return trigger, nil
}

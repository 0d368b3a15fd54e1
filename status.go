package minesduel

import "time"

// Trigger is an event that can move a match to another status.
type Trigger string

const (
	// TriggerBothReady fires when both seats are taken and marked ready.
	TriggerBothReady Trigger = "both_ready"
	// TriggerFirstStep fires when a step arrives for a match that never started.
	TriggerFirstStep Trigger = "first_step"
	// TriggerDecisive fires when a player reports win or lose.
	TriggerDecisive Trigger = "decisive"
	// TriggerAllReported fires when a draw or forfeit leaves no player without a result.
	TriggerAllReported Trigger = "all_reported"
	// TriggerTimeout fires when the countdown has run out.
	TriggerTimeout Trigger = "timeout"
)

// transitions is the complete lifecycle. Anything not listed is rejected.
var transitions = map[Status]map[Trigger]Status{
	StatusPending: {
		TriggerBothReady:   StatusActive,
		TriggerFirstStep:   StatusActive,
		TriggerDecisive:    StatusFinished,
		TriggerAllReported: StatusFinished,
		TriggerTimeout:     StatusFinished,
	},
	StatusActive: {
		TriggerDecisive:    StatusFinished,
		TriggerAllReported: StatusFinished,
		TriggerTimeout:     StatusFinished,
	},
}

// Next looks up where trigger t takes a match in status from.
func Next(from Status, t Trigger) (Status, error) {
	if to, ok := transitions[from][t]; ok {
		return to, nil
	}
	return from, Conflictf("match is %s, cannot apply %s", from, t)
}

// Apply moves m along the transition table and stamps the timestamps owned
// by the transition. startDelay is only used by TriggerBothReady.
func (m *Match) Apply(t Trigger, now time.Time, startDelay time.Duration) error {
	next, err := Next(m.Status, t)
	if err != nil {
		return err
	}

	switch t {
	case TriggerBothReady:
		start := now.Add(startDelay)
		m.StartedAt = &start
		if m.CountdownSecs <= 0 {
			m.CountdownSecs = DefaultCountdownSecs
		}
	case TriggerFirstStep:
		if m.StartedAt == nil {
			start := now
			m.StartedAt = &start
		}
	default:
		end := now
		m.EndedAt = &end
	}

	m.Status = next
	return nil
}

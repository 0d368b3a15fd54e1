package minesduel

import (
	"time"

	"gorm.io/datatypes"
)

// Status is where a match is in its lifecycle. It only ever moves forward.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Outcome is the result recorded for a single player.
type Outcome string

const (
	OutcomeWin     Outcome = "win"
	OutcomeLose    Outcome = "lose"
	OutcomeDraw    Outcome = "draw"
	OutcomeForfeit Outcome = "forfeit"
)

// ParseOutcome validates a client supplied outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(s); o {
	case OutcomeWin, OutcomeLose, OutcomeDraw, OutcomeForfeit:
		return o, nil
	}
	return "", Invalidf("unknown outcome %q", s)
}

// Action is a board interaction logged as a step.
type Action string

const (
	ActionReveal Action = "reveal"
	ActionFlag   Action = "flag"
	ActionChord  Action = "chord"
)

// ParseAction validates a client supplied action.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionReveal, ActionFlag, ActionChord:
		return a, nil
	}
	return "", Invalidf("unknown action %q", s)
}

const (
	// DefaultCountdownSecs is the time budget of a match once it starts.
	DefaultCountdownSecs = 300

	// DefaultStartDelay is the grace period between both players being ready
	// and the clock starting.
	DefaultStartDelay = 10 * time.Second

	// MaxPlayers is the number of seats in a match.
	MaxPlayers = 2
)

// Match is one head-to-head game session.
type Match struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Status        Status     `gorm:"type:varchar(16);index;not null;default:'pending'" json:"status"`
	Width         int        `gorm:"not null" json:"width"`
	Height        int        `gorm:"not null" json:"height"`
	Mines         int        `gorm:"not null" json:"mines"`
	Seed          string     `gorm:"type:varchar(64);not null" json:"seed"`
	Difficulty    *string    `gorm:"type:varchar(32);index" json:"difficulty,omitempty"`
	CountdownSecs int        `gorm:"not null;default:300" json:"countdown_secs"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	StartedAt     *time.Time `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at"`
	LastActiveAt  *time.Time `json:"last_active_at,omitempty"`

	// Associations
	Players []Player `gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE" json:"-"`
}

// Deadline is when the countdown runs out. It is only known once the match
// has a start time.
func (m *Match) Deadline() (time.Time, bool) {
	if m.StartedAt == nil {
		return time.Time{}, false
	}
	secs := m.CountdownSecs
	if secs <= 0 {
		secs = DefaultCountdownSecs
	}
	return m.StartedAt.Add(time.Duration(secs) * time.Second), true
}

// Touch records activity on the match.
func (m *Match) Touch(now time.Time) {
	m.LastActiveAt = &now
}

// Player is a seat in a match. Token is the only credential for acting as
// this player and is never rendered.
type Player struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	MatchID    int64          `gorm:"index;not null" json:"match_id"`
	Name       string         `gorm:"type:varchar(50);not null;index" json:"name"`
	UserID     *int64         `gorm:"index" json:"user_id,omitempty"`
	Token      string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	Result     *Outcome       `gorm:"type:varchar(16);index" json:"result"`
	DurationMs *int64         `json:"duration_ms"`
	StepsCount int            `gorm:"not null;default:0" json:"steps_count"`
	FinishedAt *time.Time     `json:"finished_at"`
	Ready      bool           `gorm:"not null;default:false" json:"ready"`
	Progress   datatypes.JSON `json:"progress,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`

	// Associations
	Steps []Step `gorm:"foreignKey:PlayerID;constraint:OnDelete:CASCADE" json:"-"`
}

// settle records a result unless one is already set. Result and finish time
// are always written together.
func (p *Player) settle(o Outcome, now time.Time) bool {
	if p.Result != nil {
		return false
	}
	p.Result = &o
	p.FinishedAt = &now
	return true
}

// Step is one logged board action. Seq counts per player within a match and
// starts at 1.
type Step struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MatchID   int64     `gorm:"not null;index;uniqueIndex:idx_step_seq,priority:1" json:"match_id"`
	PlayerID  int64     `gorm:"not null;uniqueIndex:idx_step_seq,priority:2" json:"player_id"`
	Seq       int       `gorm:"not null;uniqueIndex:idx_step_seq,priority:3" json:"seq"`
	Action    Action    `gorm:"type:varchar(16);not null" json:"action"`
	X         int       `gorm:"not null" json:"x"`
	Y         int       `gorm:"not null" json:"y"`
	ElapsedMs *int64    `json:"elapsed_ms"`
	CreatedAt time.Time `json:"created_at"`
}

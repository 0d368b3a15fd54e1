// Package match coordinates head-to-head matches: seating players, readiness,
// the step log, finish reports and lazy timeouts, on top of a transactional
// Store.
package match

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/icco/minesduel"
)

// Options configures a Coordinator. Zero values fall back to a real clock, a
// nop logger and minesduel.DefaultStartDelay.
type Options struct {
	Clock      clockwork.Clock
	Logger     *zap.SugaredLogger
	StartDelay time.Duration
}

// Coordinator runs every match operation as one transaction while holding
// the match's lock, so finish reports and step sequencing for a match never
// interleave.
type Coordinator struct {
	store      Store
	clock      clockwork.Clock
	log        *zap.SugaredLogger
	locks      *lockSet
	metrics    *metrics
	startDelay time.Duration
}

// New builds a Coordinator over store.
func New(store Store, opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.StartDelay <= 0 {
		opts.StartDelay = minesduel.DefaultStartDelay
	}

	return &Coordinator{
		store:      store,
		clock:      opts.Clock,
		log:        opts.Logger,
		locks:      newLockSet(),
		metrics:    newMetrics(opts.Logger),
		startDelay: opts.StartDelay,
	}
}

// session is a loaded, already swept match inside a transaction.
type session struct {
	tx      Tx
	match   *minesduel.Match
	players []*minesduel.Player
	now     time.Time
	fired   []minesduel.Trigger
}

func (s *session) apply(t minesduel.Trigger, startDelay time.Duration) error {
	if err := s.match.Apply(t, s.now, startDelay); err != nil {
		return err
	}
	s.fired = append(s.fired, t)
	return nil
}

// player resolves a token to a seat in this match.
func (s *session) player(token string) (*minesduel.Player, error) {
	for _, p := range s.players {
		if token != "" && subtle.ConstantTimeCompare([]byte(p.Token), []byte(token)) == 1 {
			return p, nil
		}
	}
	return nil, minesduel.Forbiddenf("invalid player token")
}

// save writes the match and all of its players.
func (s *session) save() error {
	if err := s.tx.SaveMatch(s.match); err != nil {
		return err
	}
	for _, p := range s.players {
		if err := s.tx.SavePlayer(p); err != nil {
			return err
		}
	}
	return nil
}

func rejected(err error) bool {
	var e *minesduel.Error
	return errors.As(err, &e)
}

// withMatch locks match id, loads it, applies any pending timeout and then
// runs fn in the same transaction. When fn rejects the request the timeout
// is still committed and fn's error returned.
func (c *Coordinator) withMatch(ctx context.Context, id int64, fn func(s *session) error) error {
	unlock := c.locks.lock(id)
	defer unlock()

	var s *session
	var opErr error
	err := c.store.Tx(ctx, func(tx Tx) error {
		m, err := tx.LockMatch(id)
		if err != nil {
			return err
		}
		players, err := tx.Players(id)
		if err != nil {
			return err
		}

		s = &session{tx: tx, match: m, players: players, now: c.clock.Now()}
		if minesduel.Sweep(m, players, s.now) {
			s.fired = append(s.fired, minesduel.TriggerTimeout)
			if err := s.save(); err != nil {
				return err
			}
			c.log.Infow("match timed out", "match_id", id, "ended_at", m.EndedAt)
		}

		swept := len(s.fired)
		opErr = fn(s)
		if opErr != nil && rejected(opErr) {
			s.fired = s.fired[:swept]
			return nil
		}
		return opErr
	})
	if err != nil {
		return err
	}

	for _, t := range s.fired {
		c.metrics.transition(ctx, t)
	}
	return opErr
}

// Create opens a pending match seating its first player.
func (c *Coordinator) Create(ctx context.Context, params CreateParams) (*Created, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	now := c.clock.Now()
	m := &minesduel.Match{
		Status:        minesduel.StatusPending,
		Width:         params.Width,
		Height:        params.Height,
		Mines:         params.Mines,
		Seed:          params.Seed,
		CountdownSecs: params.CountdownSecs,
		CreatedAt:     now,
		LastActiveAt:  &now,
	}
	if m.Seed == "" {
		m.Seed = minesduel.NewSeed()
	}
	if m.CountdownSecs == 0 {
		m.CountdownSecs = minesduel.DefaultCountdownSecs
	}
	if params.Difficulty != "" {
		m.Difficulty = &params.Difficulty
	}

	p := &minesduel.Player{
		Name:      params.Name,
		UserID:    params.UserID,
		Token:     minesduel.NewToken(),
		CreatedAt: now,
	}

	err := c.store.Tx(ctx, func(tx Tx) error {
		if err := tx.CreateMatch(m); err != nil {
			return err
		}
		p.MatchID = m.ID
		return tx.CreatePlayer(p)
	})
	if err != nil {
		return nil, err
	}

	add(ctx, c.metrics.created)
	c.log.Infow("match created", "match_id", m.ID, "player_id", p.ID, "board", boardOf(m))

	return &Created{
		MatchID:       m.ID,
		PlayerID:      p.ID,
		Token:         p.Token,
		Board:         boardOf(m),
		CountdownSecs: m.CountdownSecs,
	}, nil
}

// Join seats a second player.
func (c *Coordinator) Join(ctx context.Context, matchID int64, params JoinParams) (*Created, error) {
	if err := validName(params.Name); err != nil {
		return nil, err
	}

	var out *Created
	err := c.withMatch(ctx, matchID, func(s *session) error {
		m := s.match
		if m.Status == minesduel.StatusFinished {
			return minesduel.Conflictf("match already finished")
		}
		if len(s.players) >= minesduel.MaxPlayers {
			return minesduel.Conflictf("match already has %d players", minesduel.MaxPlayers)
		}
		for _, p := range s.players {
			if params.UserID != nil && p.UserID != nil && *p.UserID == *params.UserID {
				return minesduel.Conflictf("already joined this match")
			}
			if p.Name == params.Name {
				return minesduel.Conflictf("name %q is already seated in this match", params.Name)
			}
		}

		p := &minesduel.Player{
			MatchID:   m.ID,
			Name:      params.Name,
			UserID:    params.UserID,
			Token:     minesduel.NewToken(),
			CreatedAt: s.now,
		}
		if err := s.tx.CreatePlayer(p); err != nil {
			return err
		}

		m.Touch(s.now)
		if err := s.tx.SaveMatch(m); err != nil {
			return err
		}

		out = &Created{
			MatchID:       m.ID,
			PlayerID:      p.ID,
			Token:         p.Token,
			Board:         boardOf(m),
			CountdownSecs: m.CountdownSecs,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	add(ctx, c.metrics.joined)
	c.log.Infow("player joined", "match_id", matchID, "player_id", out.PlayerID)
	return out, nil
}

// SetReady flags a player as ready or not. The match activates, after the
// start delay, once both seats are taken and ready.
func (c *Coordinator) SetReady(ctx context.Context, matchID int64, token string, ready bool) (*ReadyState, error) {
	var out *ReadyState
	err := c.withMatch(ctx, matchID, func(s *session) error {
		p, err := s.player(token)
		if err != nil {
			return err
		}
		m := s.match
		if m.Status == minesduel.StatusFinished {
			return minesduel.Conflictf("match already finished")
		}

		p.Ready = ready
		if m.Status == minesduel.StatusPending && len(s.players) == minesduel.MaxPlayers && allReady(s.players) {
			if err := s.apply(minesduel.TriggerBothReady, c.startDelay); err != nil {
				return err
			}
			c.log.Infow("match starting", "match_id", m.ID, "started_at", m.StartedAt)
		}

		m.Touch(s.now)
		if err := s.save(); err != nil {
			return err
		}

		out = &ReadyState{Status: m.Status, StartedAt: m.StartedAt, CountdownSecs: m.CountdownSecs}
		return nil
	})
	return out, err
}

func allReady(players []*minesduel.Player) bool {
	for _, p := range players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// State returns a snapshot of the match after applying any timeout.
func (c *Coordinator) State(ctx context.Context, matchID int64) (*MatchState, error) {
	var out MatchState
	err := c.withMatch(ctx, matchID, func(s *session) error {
		out = stateOf(s.match, s.players)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitStep appends a step to the player's log. A step on a pending match
// starts it immediately.
func (c *Coordinator) SubmitStep(ctx context.Context, matchID int64, token string, params StepParams) error {
	if err := params.validate(); err != nil {
		return err
	}

	err := c.withMatch(ctx, matchID, func(s *session) error {
		p, err := s.player(token)
		if err != nil {
			return err
		}
		m := s.match
		if m.Status == minesduel.StatusPending {
			if err := s.apply(minesduel.TriggerFirstStep, c.startDelay); err != nil {
				return err
			}
		}
		if m.Status != minesduel.StatusActive {
			return minesduel.Conflictf("match is %s", m.Status)
		}

		last, err := s.tx.LastSeq(m.ID, p.ID)
		if err != nil {
			return err
		}
		step := &minesduel.Step{
			MatchID:   m.ID,
			PlayerID:  p.ID,
			Seq:       last + 1,
			Action:    params.Action,
			X:         params.X,
			Y:         params.Y,
			ElapsedMs: params.ElapsedMs,
			CreatedAt: s.now,
		}
		if err := s.tx.CreateStep(step); err != nil {
			return err
		}

		p.StepsCount = step.Seq
		if err := s.tx.SavePlayer(p); err != nil {
			return err
		}
		m.Touch(s.now)
		return s.tx.SaveMatch(m)
	})
	if err != nil {
		return err
	}

	add(ctx, c.metrics.steps, actionAttr(params.Action))
	return nil
}

// Finish records the player's outcome and cascades it to the opponent.
// Repeating it once a result is set only attaches a progress snapshot that
// was missing.
func (c *Coordinator) Finish(ctx context.Context, matchID int64, token string, params FinishParams) error {
	if err := params.validate(); err != nil {
		return err
	}

	return c.withMatch(ctx, matchID, func(s *session) error {
		p, err := s.player(token)
		if err != nil {
			return err
		}

		if p.Result != nil {
			if len(p.Progress) == 0 && len(params.Progress) > 0 {
				p.Progress = datatypes.JSON(params.Progress)
				return s.tx.SavePlayer(p)
			}
			return nil
		}

		trigger, err := minesduel.Resolve(s.match, s.players, p.ID, params.Outcome, s.now)
		if err != nil {
			return err
		}
		if trigger != "" {
			s.fired = append(s.fired, trigger)
		}

		p.DurationMs = params.DurationMs
		if params.StepsCount != nil {
			p.StepsCount = *params.StepsCount
		}
		if len(params.Progress) > 0 {
			p.Progress = datatypes.JSON(params.Progress)
		}

		s.match.Touch(s.now)
		if err := s.save(); err != nil {
			return err
		}

		c.log.Infow("player finished", "match_id", s.match.ID, "player_id", p.ID, "outcome", params.Outcome, "status", s.match.Status)
		return nil
	})
}

// Delete removes a match that never got going: still pending, unstarted and
// with only its creator seated.
func (c *Coordinator) Delete(ctx context.Context, matchID int64, token string) error {
	return c.withMatch(ctx, matchID, func(s *session) error {
		if _, err := s.player(token); err != nil {
			return err
		}
		m := s.match
		if len(s.players) > 1 {
			return minesduel.Conflictf("cannot delete a match with an opponent")
		}
		if m.Status != minesduel.StatusPending {
			return minesduel.Conflictf("cannot delete a %s match", m.Status)
		}
		if m.StartedAt != nil && !m.StartedAt.After(s.now) {
			return minesduel.Conflictf("cannot delete a started match")
		}

		if err := s.tx.DeleteMatch(m.ID); err != nil {
			return err
		}
		c.log.Infow("match deleted", "match_id", m.ID)
		return nil
	})
}

// Steps lists every logged step of a match in the order they arrived.
func (c *Coordinator) Steps(ctx context.Context, matchID int64) ([]StepView, error) {
	var out []StepView
	err := c.withMatch(ctx, matchID, func(s *session) error {
		names := make(map[int64]string, len(s.players))
		for _, p := range s.players {
			names[p.ID] = p.Name
		}

		steps, err := s.tx.Steps(matchID)
		if err != nil {
			return err
		}
		out = make([]StepView, 0, len(steps))
		for _, st := range steps {
			out = append(out, StepView{
				PlayerName: names[st.PlayerID],
				Action:     st.Action,
				X:          st.X,
				Y:          st.Y,
				ElapsedMs:  st.ElapsedMs,
				Seq:        st.Seq,
				CreatedAt:  st.CreatedAt,
			})
		}
		return nil
	})
	return out, err
}

// History lists the matches a player name sat in, newest first.
func (c *Coordinator) History(ctx context.Context, name string, limit int) ([]HistoryItem, error) {
	var ids []int64
	err := c.store.Tx(ctx, func(tx Tx) error {
		var err error
		ids, err = tx.MatchIDsByPlayerName(name, clampLimit(limit))
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]HistoryItem, 0, len(ids))
	for _, id := range ids {
		err := c.withMatch(ctx, id, func(s *session) error {
			m := s.match
			for _, p := range s.players {
				if p.Name != name {
					continue
				}
				out = append(out, HistoryItem{
					MatchID:    m.ID,
					Status:     m.Status,
					CreatedAt:  m.CreatedAt,
					EndedAt:    m.EndedAt,
					Difficulty: m.Difficulty,
					Width:      m.Width,
					Height:     m.Height,
					Mines:      m.Mines,
					Result:     p.Result,
					DurationMs: p.DurationMs,
				})
			}
			return nil
		})
		if errors.Is(err, minesduel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Recent lists the newest matches with their seats.
func (c *Coordinator) Recent(ctx context.Context, limit int) ([]RecentItem, error) {
	var ids []int64
	err := c.store.Tx(ctx, func(tx Tx) error {
		var err error
		ids, err = tx.RecentMatchIDs(clampLimit(limit))
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]RecentItem, 0, len(ids))
	for _, id := range ids {
		err := c.withMatch(ctx, id, func(s *session) error {
			m := s.match
			item := RecentItem{
				MatchID:    m.ID,
				Status:     m.Status,
				Difficulty: m.Difficulty,
				CreatedAt:  m.CreatedAt,
				StartedAt:  m.StartedAt,
				EndedAt:    m.EndedAt,
				Players:    make([]RecentPlayer, 0, len(s.players)),
			}
			for _, p := range s.players {
				item.Players = append(item.Players, RecentPlayer{Name: p.Name, Result: p.Result, Ready: p.Ready})
			}
			out = append(out, item)
			return nil
		})
		if errors.Is(err, minesduel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

package duel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"

	"github.com/mcoot/neurodash/internal/dependencies/clock"
	"github.com/mcoot/neurodash/internal/dependencies/random"
	"github.com/mcoot/neurodash/internal/feed"
	"github.com/mcoot/neurodash/internal/model"
)

// SessionConfig tunes a Session's timers and retries
type SessionConfig struct {
	// Countdown delay is drawn uniformly from [CountdownMin, CountdownMax]
	// independently by each client
	CountdownMin time.Duration
	CountdownMax time.Duration

	// DisconnectTimeout is how long to wait for the opponent after reporting
	DisconnectTimeout time.Duration

	// Reads are retried this many times before the error is surfaced
	ReadRetries       uint64
	ReadRetryInterval time.Duration
}

// DefaultSessionConfig returns the standard duel timings
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		CountdownMin:      2 * time.Second,
		CountdownMax:      5 * time.Second,
		DisconnectTimeout: 45 * time.Second,
		ReadRetries:       3,
		ReadRetryInterval: 250 * time.Millisecond,
	}
}

// State is a display-ready snapshot of a Session
type State struct {
	Phase    Phase
	Me       model.PlayerID
	Game     *model.Duel
	Opponent *model.Player

	// GoAt is the local instant the go signal fired, zero before that
	GoAt time.Time

	ReactionMs int64
	FalseStart bool
	Outcome    Outcome

	// Err is the last surfaced failure; the session stays usable
	Err error
}

// RoomCode returns the shareable code of the current duel
func (st State) RoomCode() model.RoomCode {
	if st.Game == nil {
		return ""
	}
	return st.Game.RoomCode
}

// action is follow-up work decided under the lock and run after it is released
type action func(ctx context.Context)

// Session is the client-side controller for one local player. It follows
// a single duel through the change feed, derives the local phase, runs the
// countdown and disconnect timers and issues the transitions it observes
// are due. It never writes in response to its own derived phase.
type Session struct {
	backend Backend
	clock   clock.Clock
	random  random.Random
	cfg     SessionConfig
	logger  *slog.Logger
	me      model.PlayerID

	mu sync.Mutex

	// gen is bumped whenever the session attaches or leaves. Timers and
	// feed goroutines carry the gen they were started under and do nothing
	// once it has moved on.
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	sub    feed.Subscription

	game       *model.Duel
	opponentID model.PlayerID
	opponent   *model.Player
	local      LocalRound
	outcome    Outcome
	err        error

	countdown  clockwork.Timer
	disconnect clockwork.Timer

	updates chan State
}

// NewSession creates a detached Session for the backend's player
func NewSession(backend Backend, clock clock.Clock, random random.Random, cfg SessionConfig, logger *slog.Logger) *Session {
	return &Session{
		backend: backend,
		clock:   clock,
		random:  random,
		cfg:     cfg,
		logger: logger.With(
			slog.String("component", "session"),
			slog.String("player_id", string(backend.PlayerID()))),
		me:      backend.PlayerID(),
		ctx:     context.Background(),
		updates: make(chan State, 1),
	}
}

// Updates delivers the latest State after every change. Intermediate
// states are coalesced if the reader falls behind.
func (s *Session) Updates() <-chan State {
	return s.updates
}

// State returns the current snapshot
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Create opens a new room and follows it
func (s *Session) Create(ctx context.Context) (*model.Duel, error) {
	s.Leave()
	d, err := s.backend.Create(ctx)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	if err := s.attach(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Join takes the second seat of a room and follows it
func (s *Session) Join(ctx context.Context, code string) (*model.Duel, error) {
	s.Leave()
	d, err := s.backend.Join(ctx, code)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	if err := s.attach(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Attach resumes a duel the player already holds a seat in, deriving the
// phase from the current record alone
func (s *Session) Attach(ctx context.Context, ref model.DuelRef) (*model.Duel, error) {
	s.Leave()
	d, err := s.read(ctx, ref)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	if !d.HasPlayer(s.me) {
		s.fail(model.ErrNotInDuel)
		return nil, model.ErrNotInDuel
	}
	if err := s.attach(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Ready raises the local player's ready flag
func (s *Session) Ready(ctx context.Context) error {
	gen, ref, ok := s.current()
	if !ok {
		return model.ErrNotInDuel
	}
	d, err := s.backend.Ready(ctx, ref)
	return s.commit(gen, d, err)
}

// Click handles the player's click. During the countdown it is a false
// start; once active it reports the self-timed reaction. Clicks in any
// other phase are ignored.
func (s *Session) Click(ctx context.Context) error {
	s.mu.Lock()
	if s.game == nil {
		s.mu.Unlock()
		return nil
	}
	gen, ref := s.gen, s.game.Ref()

	switch DerivePhase(s.game, s.me, s.local) {
	case PhaseCountdown:
		s.local.Clicked = true
		s.local.FalseStart = true
		stopTimer(&s.countdown)
		s.notifyLocked()
		s.mu.Unlock()

		s.logger.Info("false start", slog.String("duel_id", string(ref.ID)))
		d, err := s.backend.FalseStart(ctx, ref)
		return s.commit(gen, d, err)

	case PhaseActive:
		ms := s.clock.Since(s.local.ActiveAt).Milliseconds()
		ms = max(1, min(ms, MaxReactionTime.Milliseconds()))
		s.local.Clicked = true
		s.local.ReactionMs = ms
		s.notifyLocked()
		s.mu.Unlock()

		d, err := s.backend.React(ctx, ref, ms)
		return s.commit(gen, d, err)

	default:
		s.mu.Unlock()
		return nil
	}
}

// Rematch asks for a new round after results. Either player may call it;
// simultaneous requests reset the duel once.
func (s *Session) Rematch(ctx context.Context) error {
	s.mu.Lock()
	if s.game == nil || s.game.Status != model.DuelStatusFinished {
		s.mu.Unlock()
		return nil
	}
	gen, ref, round := s.gen, s.game.Ref(), s.game.Round
	s.mu.Unlock()

	d, err := s.backend.Rematch(ctx, ref, round)
	return s.commit(gen, d, err)
}

// Leave drops the session's reference to the duel, cancels pending timers
// and unsubscribes. The shared record is left untouched.
func (s *Session) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.stopTimersLocked()
	if s.cancel != nil {
		s.cancel()
	}
	if s.sub != nil {
		s.sub.Close()
	}
	if s.game != nil {
		s.logger.Info("left duel", slog.String("duel_id", string(s.game.ID)))
	}

	s.ctx, s.cancel, s.sub = context.Background(), nil, nil
	s.game, s.opponentID, s.opponent = nil, "", nil
	s.local = LocalRound{}
	s.outcome = OutcomeNone
	s.err = nil
	s.notifyLocked()
}

func (s *Session) attach(d *model.Duel) error {
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := s.backend.Subscribe(ctx, d.Ref())
	if err != nil {
		cancel()
		s.fail(err)
		return err
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.ctx, s.cancel, s.sub = ctx, cancel, sub
	s.mu.Unlock()

	s.logger.Info("following duel",
		slog.String("duel_id", string(d.ID)),
		slog.String("room_code", string(d.RoomCode)))

	go s.listen(gen, sub)
	s.observe(gen, d)

	// Catch up on writes made before the subscription was live
	fresh, err := s.read(ctx, d.Ref())
	if err != nil {
		s.logger.Warn("catch-up read failed", slog.String("error", err.Error()))
		return nil
	}
	s.observe(gen, fresh)
	return nil
}

func (s *Session) listen(gen uint64, sub feed.Subscription) {
	for change := range sub.Changes() {
		d := change.Duel
		s.observe(gen, &d)
	}

	s.mu.Lock()
	current := gen == s.gen
	s.mu.Unlock()
	if current {
		s.logger.Warn("change feed closed while following duel")
	}
}

// observe applies a record if it belongs to the followed duel and is newer
// than the one held, then runs whatever transitions became due
func (s *Session) observe(gen uint64, d *model.Duel) {
	if d == nil {
		return
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	if s.game != nil && (d.ID != s.game.ID || d.Version <= s.game.Version) {
		s.mu.Unlock()
		return
	}
	s.game = d.Clone()
	actions := s.advanceLocked(gen)
	s.notifyLocked()
	ctx := s.ctx
	s.mu.Unlock()

	for _, act := range actions {
		act(ctx)
	}
}

// advanceLocked reconciles local state with the newly applied record
func (s *Session) advanceLocked(gen uint64) []action {
	d := s.game
	ref := d.Ref()
	var actions []action

	if s.local.Round != d.Round {
		s.stopTimersLocked()
		s.local = LocalRound{Round: d.Round}
		s.outcome = OutcomeNone
		s.err = nil
	}

	if opp := d.Opponent(s.me); opp != "" && opp != s.opponentID {
		s.opponentID = opp
		actions = append(actions, func(ctx context.Context) { s.loadOpponent(ctx, gen, opp) })
	}

	switch d.Status {
	case model.DuelStatusWaiting, model.DuelStatusReady:
		if d.BothReady() {
			actions = append(actions, func(ctx context.Context) {
				d, err := s.backend.Start(ctx, ref)
				s.settle(gen, "start", d, err)
			})
		}

	case model.DuelStatusStarted:
		if !d.HasReported(s.me) && !s.local.Clicked && !s.local.Scheduled {
			s.scheduleCountdownLocked(gen, d.Round)
		}
		if d.HasReported(s.me) {
			s.armDisconnectLocked(gen, ref, d.Round)
		}
		if d.BothReported() {
			actions = append(actions, func(ctx context.Context) {
				d, err := s.backend.Finish(ctx, ref)
				s.settle(gen, "finish", d, err)
			})
		}

	case model.DuelStatusFinished:
		s.stopTimersLocked()
		s.outcome = OutcomeFor(d, s.me)
		if errors.Is(s.err, model.ErrOpponentDisconnected) {
			s.err = nil
		}
	}

	return actions
}

func (s *Session) scheduleCountdownLocked(gen uint64, round int) {
	delay := random.Between(s.random, s.cfg.CountdownMin, s.cfg.CountdownMax)
	s.local.Scheduled = true
	s.countdown = s.clock.AfterFunc(delay, func() { s.goSignal(gen, round) })
}

// goSignal moves countdown to active and stamps the zero point
func (s *Session) goSignal(gen uint64, round int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.local.Round != round || s.local.Clicked {
		return
	}
	s.local.Active = true
	s.local.ActiveAt = s.clock.Now()
	s.countdown = nil
	s.notifyLocked()
}

func (s *Session) armDisconnectLocked(gen uint64, ref model.DuelRef, round int) {
	if s.disconnect != nil || s.cfg.DisconnectTimeout <= 0 {
		return
	}
	s.disconnect = s.clock.AfterFunc(s.cfg.DisconnectTimeout, func() {
		s.disconnectTimeout(gen, ref, round)
	})
}

// disconnectTimeout re-reads the duel and surfaces a disconnect if the
// round is still waiting on the opponent
func (s *Session) disconnectTimeout(gen uint64, ref model.DuelRef, round int) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.mu.Unlock()

	if d, err := s.read(ctx, ref); err == nil {
		if d.Status == model.DuelStatusStarted && d.BothReported() {
			// An earlier finish attempt was lost
			if finished, ferr := s.backend.Finish(ctx, ref); ferr == nil || IsStale(ferr) {
				d = finished
			}
		}
		s.observe(gen, d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.game == nil || s.game.Round != round || s.game.Status == model.DuelStatusFinished {
		return
	}
	s.logger.Warn("opponent disconnected",
		slog.String("duel_id", string(ref.ID)),
		slog.Int("round", round))
	s.outcome = OutcomeOpponentDisconnected
	s.err = model.ErrOpponentDisconnected
	s.notifyLocked()
}

func (s *Session) loadOpponent(ctx context.Context, gen uint64, id model.PlayerID) {
	p, err := s.backend.Profile(ctx, id)
	if err != nil {
		s.logger.Debug("opponent profile unavailable",
			slog.String("opponent_id", string(id)),
			slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.opponentID != id {
		return
	}
	s.opponent = p
	s.notifyLocked()
}

// commit applies the result of a player-initiated write. Failures are
// surfaced immediately; a stale transition counts as success.
func (s *Session) commit(gen uint64, d *model.Duel, err error) error {
	if err != nil && !IsStale(err) {
		s.mu.Lock()
		if gen == s.gen {
			s.err = err
			s.notifyLocked()
		}
		s.mu.Unlock()
		return err
	}
	s.observe(gen, d)
	return nil
}

// settle applies the result of an automatic transition. Failures are only
// logged; the next observed change or the disconnect timer retries.
func (s *Session) settle(gen uint64, op string, d *model.Duel, err error) {
	if err != nil && !IsStale(err) {
		s.logger.Warn("transition failed",
			slog.String("op", op),
			slog.String("error", err.Error()))
		return
	}
	s.observe(gen, d)
}

// read fetches the duel, retrying transient failures with a constant backoff
func (s *Session) read(ctx context.Context, ref model.DuelRef) (*model.Duel, error) {
	op := func() (*model.Duel, error) {
		d, err := s.backend.Get(ctx, ref)
		if errors.Is(err, model.ErrDuelNotFound) || errors.Is(err, model.ErrInvalidRoomCode) {
			return nil, backoff.Permanent(err)
		}
		return d, err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.cfg.ReadRetryInterval), s.cfg.ReadRetries),
		ctx)
	notify := func(err error, next time.Duration) {
		s.logger.Debug("retrying duel read",
			slog.String("error", err.Error()),
			slog.Duration("next", next))
	}
	return backoff.RetryNotifyWithData(op, policy, notify)
}

func (s *Session) current() (uint64, model.DuelRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.game == nil {
		return 0, model.DuelRef{}, false
	}
	return s.gen, s.game.Ref(), true
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	s.notifyLocked()
}

func (s *Session) stopTimersLocked() {
	stopTimer(&s.countdown)
	stopTimer(&s.disconnect)
}

func stopTimer(t *clockwork.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// notifyLocked replaces any unread State with the current one. Every
// writer holds mu, so the send after draining cannot block.
func (s *Session) notifyLocked() {
	st := s.snapshotLocked()
	select {
	case <-s.updates:
	default:
	}
	s.updates <- st
}

func (s *Session) snapshotLocked() State {
	st := State{
		Phase:      DerivePhase(s.game, s.me, s.local),
		Me:         s.me,
		Opponent:   s.opponent,
		ReactionMs: s.local.ReactionMs,
		FalseStart: s.local.FalseStart,
		Outcome:    s.outcome,
		Err:        s.err,
	}
	if s.local.Active {
		st.GoAt = s.local.ActiveAt
	}
	if s.game != nil {
		st.Game = s.game.Clone()
		if rt := s.game.ReactionTime(s.me); rt != nil {
			st.ReactionMs = *rt
		}
		st.FalseStart = st.FalseStart || s.game.FalseStarted(s.me)
	}
	return st
}

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcoot/neurodash/internal/dependencies/clock"
	"github.com/mcoot/neurodash/internal/dependencies/random"
	"github.com/mcoot/neurodash/internal/feed"
	"github.com/mcoot/neurodash/internal/model"
	"github.com/mcoot/neurodash/internal/services/duel"
)

// MaxBotRounds is how many rounds a bot plays before leaving the room
const MaxBotRounds = 10

// ErrUnknownStrategy is returned when a bot is requested with a strategy
// that was never registered
var ErrUnknownStrategy = errors.New("unknown bot strategy")

// Players is the identity provider as seen by the bot service
type Players interface {
	duel.ProfileReader
	CreateBotPlayer(ctx context.Context, displayName, strategy string) (*model.Player, error)
}

// Service seats bot opponents in duels and plays them through a Session,
// exactly as a remote player would
type Service struct {
	players    Players
	controller *duel.Controller
	subscriber feed.Subscriber
	strategies map[string]Strategy
	clock      clock.Clock
	random     random.Random
	sessionCfg duel.SessionConfig
	logger     *slog.Logger

	mu   sync.Mutex
	bots map[model.PlayerID]*bot
}

// NewService creates a new bot Service
func NewService(
	players Players,
	controller *duel.Controller,
	subscriber feed.Subscriber,
	strategies map[string]Strategy,
	clk clock.Clock,
	rnd random.Random,
	sessionCfg duel.SessionConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		players:    players,
		controller: controller,
		subscriber: subscriber,
		strategies: strategies,
		clock:      clk,
		random:     rnd,
		sessionCfg: sessionCfg,
		logger:     logger.With(slog.String("component", "bot-service")),
		bots:       make(map[model.PlayerID]*bot),
	}
}

// AddBotToDuel creates a bot player and seats it in the room's empty seat.
// Only the player who created the room can add a bot, and only while it is
// waiting for an opponent.
func (s *Service) AddBotToDuel(ctx context.Context, rawCode string, requester model.PlayerID, strategy string) (*model.Player, error) {
	if strategy == "" {
		strategy = StrategyRandom
	}
	st, ok := s.strategies[strategy]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
	}

	d, err := s.controller.GetGameByRoomCode(ctx, rawCode)
	if err != nil {
		return nil, err
	}
	if d.Player1ID != requester {
		return nil, model.ErrNotInDuel
	}
	if d.IsFull() {
		return nil, model.ErrRoomFull
	}

	player, err := s.players.CreateBotPlayer(ctx, "Bot", strategy)
	if err != nil {
		return nil, err
	}

	backend := duel.NewLocalBackend(s.controller, s.subscriber, s.players, player.ID)
	session := duel.NewSession(backend, s.clock, s.random, s.sessionCfg, s.logger)
	if _, err := session.Join(ctx, string(d.RoomCode)); err != nil {
		return nil, err
	}

	b := newBot(player, session, st, s.clock, s.sessionCfg.DisconnectTimeout, s.logger)
	s.mu.Lock()
	s.bots[player.ID] = b
	s.mu.Unlock()

	go func() {
		b.run()
		s.mu.Lock()
		delete(s.bots, player.ID)
		s.mu.Unlock()
	}()

	s.logger.Info("bot added to duel",
		slog.String("room_code", string(d.RoomCode)),
		slog.String("bot_id", string(player.ID)),
		slog.String("strategy", strategy))
	return player, nil
}

// RemoveBot stops a bot and releases its session
func (s *Service) RemoveBot(id model.PlayerID) bool {
	s.mu.Lock()
	b, ok := s.bots[id]
	s.mu.Unlock()
	if ok {
		b.stop()
	}
	return ok
}

// ActiveBots returns the number of bots currently playing
func (s *Service) ActiveBots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bots)
}

// Close stops every bot
func (s *Service) Close() {
	s.mu.Lock()
	bots := make([]*bot, 0, len(s.bots))
	for _, b := range s.bots {
		bots = append(bots, b)
	}
	s.mu.Unlock()

	for _, b := range bots {
		b.stop()
	}
}

// bot drives one Session from its state updates. It leaves the room once
// no update has arrived for idleTimeout.
type bot struct {
	player      *model.Player
	session     *duel.Session
	strategy    Strategy
	clock       clock.Clock
	idleTimeout time.Duration
	logger      *slog.Logger

	done     chan struct{}
	stopOnce sync.Once

	// clickRound is the round the pending click timer belongs to
	clickRound int
	click      clockwork.Timer
	// playedRound is the last round whose results were seen
	playedRound int
	rounds      int
}

func newBot(player *model.Player, session *duel.Session, strategy Strategy, clk clock.Clock, idleTimeout time.Duration, logger *slog.Logger) *bot {
	return &bot{
		player:      player,
		session:     session,
		strategy:    strategy,
		clock:       clk,
		idleTimeout: idleTimeout,
		logger:      logger.With(slog.String("bot_id", string(player.ID))),
		done:        make(chan struct{}),
	}
}

func (b *bot) stop() {
	b.stopOnce.Do(func() { close(b.done) })
}

func (b *bot) run() {
	defer func() {
		if b.click != nil {
			b.click.Stop()
		}
		b.session.Leave()
		b.logger.Info("bot left duel", slog.Int("rounds", b.rounds))
	}()

	idle := b.clock.NewTimer(b.idleTimeout)
	defer idle.Stop()

	b.act(b.session.State())
	for {
		select {
		case <-b.done:
			return
		case <-idle.Chan():
			b.logger.Info("bot idle, abandoning duel", slog.Duration("idle", b.idleTimeout))
			return
		case st := <-b.session.Updates():
			idle.Reset(b.idleTimeout)
			if !b.act(st) {
				return
			}
		}
	}
}

// act responds to the latest state. It returns false once the bot is done.
func (b *bot) act(st duel.State) bool {
	if errors.Is(st.Err, model.ErrOpponentDisconnected) {
		return false
	}
	if st.Game == nil {
		return true
	}
	ctx := context.Background()

	switch st.Phase {
	case duel.PhaseReady:
		if st.Game.IsFull() && !st.Game.IsReady(b.player.ID) {
			if err := b.session.Ready(ctx); err != nil {
				b.logger.Warn("bot ready failed", slog.String("error", err.Error()))
			}
		}

	case duel.PhaseActive:
		if b.clickRound == st.Game.Round {
			return true
		}
		b.clickRound = st.Game.Round
		delay := b.strategy.ReactionDelay(st.Game)
		b.click = b.clock.AfterFunc(delay, func() {
			if err := b.session.Click(ctx); err != nil {
				b.logger.Warn("bot click failed", slog.String("error", err.Error()))
			}
		})

	case duel.PhaseResults:
		if b.playedRound == st.Game.Round {
			return true
		}
		b.playedRound = st.Game.Round
		b.rounds++
		b.logger.Info("bot round finished",
			slog.Int("round", st.Game.Round),
			slog.String("outcome", string(st.Outcome)))
		if b.rounds >= MaxBotRounds {
			return false
		}
	}
	return true
}

package duel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/neurodash/internal/dependencies/clock"
	"github.com/mcoot/neurodash/internal/dependencies/random"
	"github.com/mcoot/neurodash/internal/feed"
	"github.com/mcoot/neurodash/internal/model"
	"github.com/mcoot/neurodash/internal/storage"
)

// MaxReactionTime is the longest reaction a player may report
const MaxReactionTime = 60 * time.Second

// IsStale reports whether err is a guarded transition that found the duel
// already past its expected state. Callers treat it as a no-op.
func IsStale(err error) bool {
	return errors.Is(err, model.ErrStaleTransition)
}

// RoundObserver is told about every round that finishes
type RoundObserver interface {
	RecordRound(ctx context.Context, duel *model.Duel) error
}

// Controller mediates every read and write of duel records. Each write is
// a conditional update on the latest record, so racing participants apply
// any transition at most once.
type Controller struct {
	storage   storage.Storage
	publisher feed.Publisher
	clock     clock.Clock
	random    random.Random
	logger    *slog.Logger

	rounds RoundObserver
}

// NewController creates a new duel Controller
func NewController(
	storage storage.Storage,
	publisher feed.Publisher,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage:   storage,
		publisher: publisher,
		clock:     clock,
		random:    random,
		logger:    logger.With(slog.String("component", "duel")),
	}
}

// SetRoundObserver registers o to receive finished rounds
func (c *Controller) SetRoundObserver(o RoundObserver) {
	c.rounds = o
}

// CreateGame opens a new room with the player in the first seat
func (c *Controller) CreateGame(ctx context.Context, player model.PlayerID) (*model.Duel, error) {
	now := c.clock.Now()

	for _n := 0; _n < maxCodeAttempts; _n++ {
		code := model.RoomCode(c.random.String(RoomCodeLength, RoomCodeAlphabet))
		exists, err := c.storage.RoomCodeExists(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrCreateFailed, err)
		}
		if exists {
			continue
		}

		duel := &model.Duel{
			ID:        model.DuelID(uuid.NewString()),
			RoomCode:  code,
			Status:    model.DuelStatusWaiting,
			Player1ID: player,
			Round:     1,
			CreatedAt: now,
			UpdatedAt: now,
		}

		err = c.storage.CreateDuel(ctx, duel)
		if errors.Is(err, model.ErrRoomCodeTaken) {
			continue // Lost a race for the code
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrCreateFailed, err)
		}

		c.logger.Info("duel created",
			slog.String("duel_id", string(duel.ID)),
			slog.String("room_code", string(duel.RoomCode)),
			slog.String("player_id", string(player)))
		c.publish(ctx, model.ChangeInsert, duel)
		return duel, nil
	}

	return nil, fmt.Errorf("%w: no free room code", model.ErrCreateFailed)
}

// JoinGame takes the second seat of a waiting room. Rejoining a seat the
// player already holds returns the record unchanged.
func (c *Controller) JoinGame(ctx context.Context, rawCode string, player model.PlayerID) (*model.Duel, error) {
	code, err := NormalizeRoomCode(rawCode)
	if err != nil {
		return nil, err
	}

	existing, err := c.storage.GetDuelByRoomCode(ctx, code)
	if err != nil {
		return nil, err
	}

	switch {
	case existing.Player2ID == player:
		return existing, nil
	case existing.Player1ID == player:
		return nil, model.ErrSelfJoin
	case existing.Status == model.DuelStatusFinished, existing.Player2ID != "":
		return nil, model.ErrDuelNotFound
	}

	duel, err := c.update(ctx, "join", existing.ID, func(d *model.Duel) error {
		switch {
		case d.Player2ID == player:
			return model.ErrStaleTransition
		case d.Player2ID != "":
			// Someone else took the seat between lookup and write
			return model.ErrRoomFull
		case d.Status != model.DuelStatusWaiting:
			return model.ErrDuelNotFound
		}
		d.Player2ID = player
		d.Status = model.DuelStatusReady
		return nil
	})
	if IsStale(err) {
		return duel, nil
	}
	if err != nil {
		return nil, err
	}

	c.logger.Info("duel joined",
		slog.String("duel_id", string(duel.ID)),
		slog.String("room_code", string(duel.RoomCode)),
		slog.String("player_id", string(player)))
	return duel, nil
}

// SetReady raises the player's ready flag. A second call is a stale no-op.
func (c *Controller) SetReady(ctx context.Context, id model.DuelID, player model.PlayerID) (*model.Duel, error) {
	return c.update(ctx, "ready", id, func(d *model.Duel) error {
		if !d.HasPlayer(player) {
			return model.ErrNotInDuel
		}
		if d.Status != model.DuelStatusWaiting && d.Status != model.DuelStatusReady {
			return model.ErrStaleTransition
		}
		if d.IsReady(player) {
			return model.ErrStaleTransition
		}
		d.SetReady(player)
		return nil
	})
}

// StartRound moves a fully ready duel to started and stamps the start
// timestamp. Only the first caller's write lands.
func (c *Controller) StartRound(ctx context.Context, id model.DuelID) (*model.Duel, error) {
	duel, err := c.update(ctx, "start", id, func(d *model.Duel) error {
		if d.Status != model.DuelStatusWaiting && d.Status != model.DuelStatusReady {
			return model.ErrStaleTransition
		}
		if !d.BothReady() {
			return model.ErrStaleTransition
		}
		now := c.clock.Now()
		d.Status = model.DuelStatusStarted
		d.StartTimestamp = &now
		return nil
	})
	if err == nil {
		c.logger.Info("round started",
			slog.String("duel_id", string(duel.ID)),
			slog.Int("round", duel.Round))
	}
	return duel, err
}

// RecordReaction stores the player's reaction time for the current round.
// A time already recorded is never overwritten.
func (c *Controller) RecordReaction(ctx context.Context, id model.DuelID, player model.PlayerID, ms int64) (*model.Duel, error) {
	if ms <= 0 || ms > MaxReactionTime.Milliseconds() {
		return nil, model.ErrInvalidReactionTime
	}
	return c.update(ctx, "reaction", id, func(d *model.Duel) error {
		if err := checkCanReport(d, player); err != nil {
			return err
		}
		d.SetReactionTime(player, ms)
		return nil
	})
}

// RecordFalseStart marks the player as having clicked before the go signal
func (c *Controller) RecordFalseStart(ctx context.Context, id model.DuelID, player model.PlayerID) (*model.Duel, error) {
	return c.update(ctx, "false_start", id, func(d *model.Duel) error {
		if err := checkCanReport(d, player); err != nil {
			return err
		}
		d.SetFalseStart(player)
		return nil
	})
}

func checkCanReport(d *model.Duel, player model.PlayerID) error {
	if !d.HasPlayer(player) {
		return model.ErrNotInDuel
	}
	switch d.Status {
	case model.DuelStatusStarted:
		if d.HasReported(player) {
			return model.ErrStaleTransition
		}
		return nil
	case model.DuelStatusFinished:
		return model.ErrStaleTransition
	default:
		return model.ErrRoundNotStarted
	}
}

// FinishRound resolves the winner once both players have reported
func (c *Controller) FinishRound(ctx context.Context, id model.DuelID) (*model.Duel, error) {
	duel, err := c.update(ctx, "finish", id, func(d *model.Duel) error {
		if d.Status != model.DuelStatusStarted || !d.BothReported() {
			return model.ErrStaleTransition
		}
		d.WinnerID = DetermineWinner(d)
		d.Status = model.DuelStatusFinished
		return nil
	})
	if err == nil {
		c.logger.Info("round finished",
			slog.String("duel_id", string(duel.ID)),
			slog.Int("round", duel.Round),
			slog.String("winner_id", string(duel.WinnerID)))
		if c.rounds != nil {
			if rerr := c.rounds.RecordRound(ctx, duel); rerr != nil {
				c.logger.Warn("failed to record round",
					slog.String("duel_id", string(duel.ID)),
					slog.String("error", rerr.Error()))
			}
		}
	}
	return duel, err
}

// Rematch resets a finished round in place, keeping the room and both
// seats. round must be the round the caller saw finish, so simultaneous
// requests reset the duel only once.
func (c *Controller) Rematch(ctx context.Context, id model.DuelID, player model.PlayerID, round int) (*model.Duel, error) {
	duel, err := c.update(ctx, "rematch", id, func(d *model.Duel) error {
		if !d.HasPlayer(player) {
			return model.ErrNotInDuel
		}
		if d.Status != model.DuelStatusFinished || d.Round != round {
			return model.ErrStaleTransition
		}
		d.ResetRound()
		d.Round++
		d.Status = model.DuelStatusReady
		return nil
	})
	if err == nil {
		c.logger.Info("rematch",
			slog.String("duel_id", string(duel.ID)),
			slog.Int("round", duel.Round),
			slog.String("player_id", string(player)))
	}
	return duel, err
}

// GetGame retrieves a duel by ID
func (c *Controller) GetGame(ctx context.Context, id model.DuelID) (*model.Duel, error) {
	return c.storage.GetDuel(ctx, id)
}

// GetGameByRoomCode retrieves a duel by user-supplied room code
func (c *Controller) GetGameByRoomCode(ctx context.Context, rawCode string) (*model.Duel, error) {
	code, err := NormalizeRoomCode(rawCode)
	if err != nil {
		return nil, err
	}
	return c.storage.GetDuelByRoomCode(ctx, code)
}

// update runs a guarded mutation and publishes the result. A stale
// transition returns the current record alongside the wrapped error.
func (c *Controller) update(ctx context.Context, op string, id model.DuelID, fn storage.DuelMutator) (*model.Duel, error) {
	duel, err := c.storage.UpdateDuel(ctx, id, func(d *model.Duel) error {
		if err := fn(d); err != nil {
			return err
		}
		d.UpdatedAt = c.clock.Now()
		return nil
	})
	if err != nil {
		if IsStale(err) {
			c.logger.Debug("stale transition ignored",
				slog.String("op", op),
				slog.String("duel_id", string(id)))
			return duel, fmt.Errorf("%s: %w", op, err)
		}
		return nil, err
	}

	c.publish(ctx, model.ChangeUpdate, duel)
	return duel, nil
}

// publish failures are logged, not returned
func (c *Controller) publish(ctx context.Context, changeType model.ChangeType, duel *model.Duel) {
	if c.publisher == nil {
		return
	}
	change := feed.NewChange(changeType, duel, c.clock.Now())
	if err := c.publisher.Publish(ctx, change); err != nil {
		c.logger.Warn("failed to publish duel change",
			slog.String("duel_id", string(duel.ID)),
			slog.Int64("version", duel.Version),
			slog.String("error", err.Error()))
	}
}

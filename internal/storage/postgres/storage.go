package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcoot/neurodash/internal/model"
	"github.com/mcoot/neurodash/internal/storage"
)

const uniqueViolation = "23505"

const duelColumns = `id, room_code, status, player1_id, player2_id, player1_ready, player2_ready,
	start_timestamp, player1_reaction_time, player2_reaction_time,
	player1_false_start, player2_false_start, winner_id, round, version, created_at, updated_at`

// Storage is a Postgres-backed implementation of the storage interface.
// Duel updates are guarded by the version column.
type Storage struct {
	pool *pgxpool.Pool
}

// New connects a pool and verifies it with a ping
func New(ctx context.Context, cfg Config) (*Storage, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Storage{pool: pool}, nil
}

// NewWithPool wraps an existing pool
func NewWithPool(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

// Migrate creates the tables if they do not exist
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the pool
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, p *model.Player) error {
	query := `
		INSERT INTO players (id, username, full_name, display_name, is_guest, is_bot, bot_strategy, average_reaction_time, reaction_samples, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			full_name = EXCLUDED.full_name,
			display_name = EXCLUDED.display_name,
			is_guest = EXCLUDED.is_guest,
			is_bot = EXCLUDED.is_bot,
			bot_strategy = EXCLUDED.bot_strategy,
			average_reaction_time = EXCLUDED.average_reaction_time,
			reaction_samples = EXCLUDED.reaction_samples`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.Username, p.FullName, p.DisplayName, p.IsGuest, p.IsBot, p.BotStrategy, p.AverageReactionTime, p.ReactionSamples, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save player: %w", err)
	}
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	query := `
		SELECT id, username, full_name, display_name, is_guest, is_bot, bot_strategy, average_reaction_time, reaction_samples, created_at
		FROM players
		WHERE id = $1`

	p := &model.Player{}
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Username,
		&p.FullName,
		&p.DisplayName,
		&p.IsGuest,
		&p.IsBot,
		&p.BotStrategy,
		&p.AverageReactionTime,
		&p.ReactionSamples,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
}

func (s *Storage) DeletePlayer(ctx context.Context, id model.PlayerID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM players WHERE id = $1`, id)
	return err
}

// Registered player operations

func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	query := `
		INSERT INTO registered_players (player_id, username, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (player_id) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			updated_at = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query, rp.PlayerID, rp.Username, rp.PasswordHash, rp.CreatedAt, rp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save registered player: %w", err)
	}
	return nil
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	return s.getRegisteredPlayer(ctx, `WHERE player_id = $1`, playerID)
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	return s.getRegisteredPlayer(ctx, `WHERE username = $1`, username)
}

func (s *Storage) getRegisteredPlayer(ctx context.Context, where string, arg any) (*model.RegisteredPlayer, error) {
	query := `SELECT player_id, username, password_hash, created_at, updated_at FROM registered_players ` + where

	rp := &model.RegisteredPlayer{}
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&rp.PlayerID,
		&rp.Username,
		&rp.PasswordHash,
		&rp.CreatedAt,
		&rp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get registered player: %w", err)
	}
	return rp, nil
}

// Duel operations

func (s *Storage) CreateDuel(ctx context.Context, d *model.Duel) error {
	query := `INSERT INTO duels (` + duelColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := s.pool.Exec(ctx, query,
		d.ID, d.RoomCode, d.Status, d.Player1ID, d.Player2ID, d.Player1Ready, d.Player2Ready,
		d.StartTimestamp, d.Player1ReactionTime, d.Player2ReactionTime,
		d.Player1FalseStart, d.Player2FalseStart, d.WinnerID, d.Round, d.Version, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.ErrRoomCodeTaken
		}
		return fmt.Errorf("failed to create duel: %w", err)
	}
	return nil
}

func (s *Storage) GetDuel(ctx context.Context, id model.DuelID) (*model.Duel, error) {
	return s.getDuel(ctx, `WHERE id = $1`, id)
}

func (s *Storage) GetDuelByRoomCode(ctx context.Context, code model.RoomCode) (*model.Duel, error) {
	return s.getDuel(ctx, `WHERE room_code = $1`, code)
}

func (s *Storage) RoomCodeExists(ctx context.Context, code model.RoomCode) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM duels WHERE room_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check room code: %w", err)
	}
	return exists, nil
}

// UpdateDuel applies fn and writes back only if the version column still
// matches the value read. Zero rows affected means another writer won, so
// the read is repeated.
func (s *Storage) UpdateDuel(ctx context.Context, id model.DuelID, fn storage.DuelMutator) (*model.Duel, error) {
	query := `
		UPDATE duels SET
			status = $3,
			player2_id = $4,
			player1_ready = $5,
			player2_ready = $6,
			start_timestamp = $7,
			player1_reaction_time = $8,
			player2_reaction_time = $9,
			player1_false_start = $10,
			player2_false_start = $11,
			winner_id = $12,
			round = $13,
			version = version + 1,
			updated_at = $14
		WHERE id = $1 AND version = $2`

	for _n := 0; _n < storage.MaxUpdateAttempts; _n++ {
		current, err := s.GetDuel(ctx, id)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return current, err
		}

		tag, err := s.pool.Exec(ctx, query,
			id, current.Version,
			next.Status, next.Player2ID, next.Player1Ready, next.Player2Ready,
			next.StartTimestamp, next.Player1ReactionTime, next.Player2ReactionTime,
			next.Player1FalseStart, next.Player2FalseStart, next.WinnerID, next.Round, next.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to update duel: %w", err)
		}
		if tag.RowsAffected() == 1 {
			next.ID = current.ID
			next.RoomCode = current.RoomCode
			next.Player1ID = current.Player1ID
			next.Version = current.Version + 1
			return next, nil
		}
	}
	return nil, fmt.Errorf("update duel %s: %w", id, storage.ErrUpdateConflict)
}

func (s *Storage) getDuel(ctx context.Context, where string, arg any) (*model.Duel, error) {
	query := `SELECT ` + duelColumns + ` FROM duels ` + where

	d := &model.Duel{}
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&d.ID,
		&d.RoomCode,
		&d.Status,
		&d.Player1ID,
		&d.Player2ID,
		&d.Player1Ready,
		&d.Player2Ready,
		&d.StartTimestamp,
		&d.Player1ReactionTime,
		&d.Player2ReactionTime,
		&d.Player1FalseStart,
		&d.Player2FalseStart,
		&d.WinnerID,
		&d.Round,
		&d.Version,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrDuelNotFound
		}
		return nil, fmt.Errorf("failed to get duel: %w", err)
	}
	return d, nil
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/neurodash/internal/model"
	"github.com/mcoot/neurodash/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	opts.DialTimeout = dialTimeout

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Client exposes the underlying client so the pub/sub feed can share it
func (s *Storage) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}

	key := playerKey(player.ID)

	// Apply TTL only for guest players
	var ttl time.Duration
	if player.IsGuest {
		ttl = s.cfg.GuestPlayerTTL
	}

	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	data, err := s.client.Get(ctx, playerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var player model.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *Storage) DeletePlayer(ctx context.Context, id model.PlayerID) error {
	return s.client.Del(ctx, playerKey(id)).Err()
}

// Registered player operations

func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	data, err := json.Marshal(rp)
	if err != nil {
		return err
	}

	// Use pipeline for atomic save + index update
	pipe := s.client.Pipeline()
	pipe.Set(ctx, registeredPlayerKey(rp.PlayerID), data, 0) // No TTL
	pipe.Set(ctx, usernameIndexKey(rp.Username), string(rp.PlayerID), 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	data, err := s.client.Get(ctx, registeredPlayerKey(playerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var rp model.RegisteredPlayer
	if err := json.Unmarshal(data, &rp); err != nil {
		return nil, err
	}
	return &rp, nil
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	// Look up player ID from username index
	playerIDStr, err := s.client.Get(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	return s.GetRegisteredPlayer(ctx, model.PlayerID(playerIDStr))
}

// Duel operations

func (s *Storage) CreateDuel(ctx context.Context, duel *model.Duel) error {
	data, err := json.Marshal(duel)
	if err != nil {
		return err
	}

	// Claim the room code first; SETNX makes the claim the uniqueness check
	claimed, err := s.client.SetNX(ctx, roomCodeIndexKey(duel.RoomCode), string(duel.ID), s.cfg.DuelTTL).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return model.ErrRoomCodeTaken
	}

	if err := s.client.Set(ctx, duelKey(duel.ID), data, s.cfg.DuelTTL).Err(); err != nil {
		// Release the claim so the code is not leaked
		_ = s.client.Del(ctx, roomCodeIndexKey(duel.RoomCode)).Err()
		return err
	}
	return nil
}

func (s *Storage) GetDuel(ctx context.Context, id model.DuelID) (*model.Duel, error) {
	return getDuel(ctx, s.client, id)
}

func (s *Storage) GetDuelByRoomCode(ctx context.Context, code model.RoomCode) (*model.Duel, error) {
	id, err := s.client.Get(ctx, roomCodeIndexKey(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrDuelNotFound
		}
		return nil, err
	}
	return s.GetDuel(ctx, model.DuelID(id))
}

func (s *Storage) RoomCodeExists(ctx context.Context, code model.RoomCode) (bool, error) {
	exists, err := s.client.Exists(ctx, roomCodeIndexKey(code)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// UpdateDuel runs fn inside a WATCH/MULTI transaction on the duel key.
// A concurrent write aborts EXEC with TxFailedErr and the update is retried
// against the fresh value.
func (s *Storage) UpdateDuel(ctx context.Context, id model.DuelID, fn storage.DuelMutator) (*model.Duel, error) {
	key := duelKey(id)

	var result *model.Duel
	var fnErr error

	txf := func(tx *redis.Tx) error {
		current, err := getDuel(ctx, tx, id)
		if err != nil {
			return err
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			result, fnErr = current, err
			return nil
		}
		next.ID = current.ID
		next.RoomCode = current.RoomCode
		next.Version = current.Version + 1

		data, err := json.Marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.cfg.DuelTTL)
			pipe.Expire(ctx, roomCodeIndexKey(next.RoomCode), s.cfg.DuelTTL) // Keep index TTL in sync
			return nil
		})
		if err != nil {
			return err
		}
		result, fnErr = next, nil
		return nil
	}

	for _n := 0; _n < storage.MaxUpdateAttempts; _n++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, fnErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // Lost the race, retry on the fresh value
		}
		return nil, err
	}
	return nil, fmt.Errorf("update duel %s: %w", id, storage.ErrUpdateConflict)
}

// getDuel loads a duel through any command issuer (client or transaction)
func getDuel(ctx context.Context, c redis.Cmdable, id model.DuelID) (*model.Duel, error) {
	data, err := c.Get(ctx, duelKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrDuelNotFound
		}
		return nil, err
	}

	var duel model.Duel
	if err := json.Unmarshal(data, &duel); err != nil {
		return nil, err
	}
	return &duel, nil
}

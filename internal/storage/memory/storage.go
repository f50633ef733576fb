package memory

import (
	"context"
	"sync"

	"github.com/mcoot/neurodash/internal/model"
	"github.com/mcoot/neurodash/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	players           map[model.PlayerID]*model.Player
	registeredPlayers map[model.PlayerID]*model.RegisteredPlayer
	usernameIndex     map[string]model.PlayerID
	duels             map[model.DuelID]*model.Duel
	roomIndex         map[model.RoomCode]model.DuelID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:           make(map[model.PlayerID]*model.Player),
		registeredPlayers: make(map[model.PlayerID]*model.RegisteredPlayer),
		usernameIndex:     make(map[string]model.PlayerID),
		duels:             make(map[model.DuelID]*model.Duel),
		roomIndex:         make(map[model.RoomCode]model.DuelID),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *player
	s.players[player.ID] = &p
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	p := *player
	return &p, nil
}

func (s *Storage) DeletePlayer(ctx context.Context, id model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, id)
	return nil
}

// Registered player operations

func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registeredPlayers[rp.PlayerID] = rp
	s.usernameIndex[rp.Username] = rp.PlayerID
	return nil
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rp, ok := s.registeredPlayers[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return rp, nil
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	playerID, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	rp, ok := s.registeredPlayers[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return rp, nil
}

// Duel operations
// Duels are cloned on the way in and out so callers never share state
// with the store.

func (s *Storage) CreateDuel(ctx context.Context, duel *model.Duel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.roomIndex[duel.RoomCode]; taken {
		return model.ErrRoomCodeTaken
	}
	s.duels[duel.ID] = duel.Clone()
	s.roomIndex[duel.RoomCode] = duel.ID
	return nil
}

func (s *Storage) GetDuel(ctx context.Context, id model.DuelID) (*model.Duel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	duel, ok := s.duels[id]
	if !ok {
		return nil, model.ErrDuelNotFound
	}
	return duel.Clone(), nil
}

func (s *Storage) GetDuelByRoomCode(ctx context.Context, code model.RoomCode) (*model.Duel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.roomIndex[code]
	if !ok {
		return nil, model.ErrDuelNotFound
	}
	duel, ok := s.duels[id]
	if !ok {
		return nil, model.ErrDuelNotFound
	}
	return duel.Clone(), nil
}

func (s *Storage) RoomCodeExists(ctx context.Context, code model.RoomCode) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roomIndex[code]
	return ok, nil
}

func (s *Storage) UpdateDuel(ctx context.Context, id model.DuelID, fn storage.DuelMutator) (*model.Duel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.duels[id]
	if !ok {
		return nil, model.ErrDuelNotFound
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return current.Clone(), err
	}
	next.ID = current.ID
	next.RoomCode = current.RoomCode
	next.Version = current.Version + 1

	s.duels[id] = next
	return next.Clone(), nil
}

package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/neurodash/internal/model"
)

type StorageSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	cfg := DefaultConfig()
	cfg.GuestPlayerTTL = time.Hour
	cfg.DuelTTL = time.Hour

	s.storage = NewWithClient(client, cfg)
	s.ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

// Player tests

func (s *StorageSuite) TestSaveAndGetPlayer() {
	player := &model.Player{
		ID:          "player-1",
		DisplayName: "Alice",
		IsGuest:     false,
		CreatedAt:   time.Now(),
	}

	err := s.storage.SavePlayer(s.ctx, player)
	s.Require().NoError(err)

	retrieved, err := s.storage.GetPlayer(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(player.ID, retrieved.ID)
	s.Equal(player.DisplayName, retrieved.DisplayName)
}

func (s *StorageSuite) TestGetPlayerNotFound() {
	_, err := s.storage.GetPlayer(s.ctx, "nonexistent")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *StorageSuite) TestDeletePlayer() {
	player := &model.Player{ID: "player-1", DisplayName: "Alice"}
	_ = s.storage.SavePlayer(s.ctx, player)

	err := s.storage.DeletePlayer(s.ctx, "player-1")
	s.Require().NoError(err)

	_, err = s.storage.GetPlayer(s.ctx, "player-1")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *StorageSuite) TestGuestPlayerTTL() {
	guestPlayer := &model.Player{
		ID:      "guest-1",
		IsGuest: true,
	}
	registeredPlayer := &model.Player{
		ID:      "registered-1",
		IsGuest: false,
	}

	_ = s.storage.SavePlayer(s.ctx, guestPlayer)
	_ = s.storage.SavePlayer(s.ctx, registeredPlayer)

	// Check that guest has TTL and registered doesn't
	guestTTL := s.mini.TTL(playerKey(guestPlayer.ID))
	registeredTTL := s.mini.TTL(playerKey(registeredPlayer.ID))

	s.True(guestTTL > 0, "Guest player should have TTL")
	s.Equal(time.Duration(0), registeredTTL, "Registered player should not have TTL")
}

// Registered player tests

func (s *StorageSuite) TestSaveAndGetRegisteredPlayer() {
	rp := &model.RegisteredPlayer{
		PlayerID:     "player-1",
		Username:     "alice",
		PasswordHash: "hash123",
		CreatedAt:    time.Now(),
	}

	err := s.storage.SaveRegisteredPlayer(s.ctx, rp)
	s.Require().NoError(err)

	retrieved, err := s.storage.GetRegisteredPlayer(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(rp.Username, retrieved.Username)
}

func (s *StorageSuite) TestGetRegisteredPlayerByUsername() {
	rp := &model.RegisteredPlayer{
		PlayerID:     "player-1",
		Username:     "alice",
		PasswordHash: "hash123",
	}
	_ = s.storage.SaveRegisteredPlayer(s.ctx, rp)

	retrieved, err := s.storage.GetRegisteredPlayerByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("player-1", string(retrieved.PlayerID))
}

func (s *StorageSuite) TestGetRegisteredPlayerByUsernameNotFound() {
	_, err := s.storage.GetRegisteredPlayerByUsername(s.ctx, "nonexistent")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// Duel tests

func newDuel(id model.DuelID, code model.RoomCode) *model.Duel {
	return &model.Duel{
		ID:        id,
		RoomCode:  code,
		Status:    model.DuelStatusWaiting,
		Player1ID: "p1",
		Round:     1,
		CreatedAt: time.Now(),
	}
}

func (s *StorageSuite) TestCreateAndGetDuel() {
	duel := newDuel("duel-1", "ABC123")

	err := s.storage.CreateDuel(s.ctx, duel)
	s.Require().NoError(err)

	retrieved, err := s.storage.GetDuel(s.ctx, "duel-1")
	s.Require().NoError(err)
	s.Equal(duel.RoomCode, retrieved.RoomCode)
	s.Equal(model.DuelStatusWaiting, retrieved.Status)

	byCode, err := s.storage.GetDuelByRoomCode(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.Equal(duel.ID, byCode.ID)
}

func (s *StorageSuite) TestGetDuelNotFound() {
	_, err := s.storage.GetDuel(s.ctx, "nonexistent")
	s.ErrorIs(err, model.ErrDuelNotFound)

	_, err = s.storage.GetDuelByRoomCode(s.ctx, "ZZZZZZ")
	s.ErrorIs(err, model.ErrDuelNotFound)
}

func (s *StorageSuite) TestCreateDuelRoomCodeTaken() {
	s.Require().NoError(s.storage.CreateDuel(s.ctx, newDuel("duel-1", "ABC123")))

	err := s.storage.CreateDuel(s.ctx, newDuel("duel-2", "ABC123"))
	s.ErrorIs(err, model.ErrRoomCodeTaken)

	// The original claim is untouched
	byCode, err := s.storage.GetDuelByRoomCode(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.Equal(model.DuelID("duel-1"), byCode.ID)
}

func (s *StorageSuite) TestRoomCodeExists() {
	_ = s.storage.CreateDuel(s.ctx, newDuel("duel-1", "ABC123"))

	exists, err := s.storage.RoomCodeExists(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.storage.RoomCodeExists(s.ctx, "XYZ789")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *StorageSuite) TestDuelTTL() {
	duel := newDuel("duel-1", "ABC123")
	_ = s.storage.CreateDuel(s.ctx, duel)

	s.True(s.mini.TTL(duelKey(duel.ID)) > 0, "Duel should have TTL")
	s.True(s.mini.TTL(roomCodeIndexKey(duel.RoomCode)) > 0, "Room index should have TTL")
}

func (s *StorageSuite) TestUpdateDuelIncrementsVersion() {
	_ = s.storage.CreateDuel(s.ctx, newDuel("duel-1", "ABC123"))

	updated, err := s.storage.UpdateDuel(s.ctx, "duel-1", func(d *model.Duel) error {
		d.Player2ID = "p2"
		d.Status = model.DuelStatusReady
		return nil
	})
	s.Require().NoError(err)
	s.Equal(int64(1), updated.Version)
	s.Equal(model.PlayerID("p2"), updated.Player2ID)

	retrieved, err := s.storage.GetDuel(s.ctx, "duel-1")
	s.Require().NoError(err)
	s.Equal(int64(1), retrieved.Version)
	s.Equal(model.DuelStatusReady, retrieved.Status)
}

func (s *StorageSuite) TestUpdateDuelMutatorErrorDoesNotWrite() {
	_ = s.storage.CreateDuel(s.ctx, newDuel("duel-1", "ABC123"))

	current, err := s.storage.UpdateDuel(s.ctx, "duel-1", func(d *model.Duel) error {
		d.Status = model.DuelStatusFinished
		return model.ErrStaleTransition
	})
	s.ErrorIs(err, model.ErrStaleTransition)
	s.Require().NotNil(current)
	s.Equal(model.DuelStatusWaiting, current.Status)

	retrieved, _ := s.storage.GetDuel(s.ctx, "duel-1")
	s.Equal(model.DuelStatusWaiting, retrieved.Status)
	s.Equal(int64(0), retrieved.Version)
}

func (s *StorageSuite) TestUpdateDuelNotFound() {
	_, err := s.storage.UpdateDuel(s.ctx, "nonexistent", func(d *model.Duel) error { return nil })
	s.ErrorIs(err, model.ErrDuelNotFound)
}

func (s *StorageSuite) TestUpdateDuelConcurrentSingleWinner() {
	duel := newDuel("duel-1", "ABC123")
	_ = s.storage.CreateDuel(s.ctx, duel)

	// Both writers try to take the empty seat; only one may succeed
	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded, refused int
	for _, joiner := range []model.PlayerID{"p2", "p3"} {
		joiner := joiner
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.storage.UpdateDuel(s.ctx, "duel-1", func(d *model.Duel) error {
				if d.Player2ID != "" {
					return model.ErrRoomFull
				}
				d.Player2ID = joiner
				return nil
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, model.ErrRoomFull):
				refused++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, succeeded)
	s.Equal(1, refused)

	retrieved, _ := s.storage.GetDuel(s.ctx, "duel-1")
	s.Equal(int64(1), retrieved.Version)
}

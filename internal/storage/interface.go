package storage

import (
	"context"
	"errors"

	"github.com/mcoot/neurodash/internal/model"
)

// MaxUpdateAttempts bounds optimistic retries when a concurrent writer
// changed a duel between read and write
const MaxUpdateAttempts = 10

// ErrUpdateConflict is returned when MaxUpdateAttempts were all lost to
// concurrent writers
var ErrUpdateConflict = errors.New("duel update conflict")

// DuelMutator is applied to a private copy of the latest duel during an
// update. Returning an error aborts the update without writing; use
// model.ErrStaleTransition when the duel has moved past the expected state.
type DuelMutator func(d *model.Duel) error

// Storage defines the interface for data persistence
type Storage interface {
	// Player operations
	SavePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	DeletePlayer(ctx context.Context, id model.PlayerID) error

	// Registered player operations
	SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error
	GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error)
	GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error)

	// Duel operations

	// CreateDuel inserts a new duel. Fails with model.ErrRoomCodeTaken if
	// another retained duel holds the same room code.
	CreateDuel(ctx context.Context, duel *model.Duel) error
	GetDuel(ctx context.Context, id model.DuelID) (*model.Duel, error)
	GetDuelByRoomCode(ctx context.Context, code model.RoomCode) (*model.Duel, error)
	RoomCodeExists(ctx context.Context, code model.RoomCode) (bool, error)

	// UpdateDuel atomically applies fn to the latest version of the duel and
	// persists the result with Version incremented. The write only lands if
	// no other writer changed the duel in between. When fn fails, the latest
	// unmodified duel is returned alongside fn's error.
	UpdateDuel(ctx context.Context, id model.DuelID, fn DuelMutator) (*model.Duel, error)
}

package duel

import (
	"context"

	"github.com/mcoot/neurodash/internal/feed"
	"github.com/mcoot/neurodash/internal/model"
)

// Backend is everything a Session needs from the outside world, already
// bound to the local player. Writes may return the current record together
// with an ErrStaleTransition, which the Session treats as success.
type Backend interface {
	PlayerID() model.PlayerID

	Create(ctx context.Context) (*model.Duel, error)
	Join(ctx context.Context, code string) (*model.Duel, error)
	Get(ctx context.Context, ref model.DuelRef) (*model.Duel, error)

	Ready(ctx context.Context, ref model.DuelRef) (*model.Duel, error)
	Start(ctx context.Context, ref model.DuelRef) (*model.Duel, error)
	React(ctx context.Context, ref model.DuelRef, ms int64) (*model.Duel, error)
	FalseStart(ctx context.Context, ref model.DuelRef) (*model.Duel, error)
	Finish(ctx context.Context, ref model.DuelRef) (*model.Duel, error)
	Rematch(ctx context.Context, ref model.DuelRef, round int) (*model.Duel, error)

	Profile(ctx context.Context, id model.PlayerID) (*model.Player, error)
	Subscribe(ctx context.Context, ref model.DuelRef) (feed.Subscription, error)
}

// ProfileReader supplies read-only player profiles
type ProfileReader interface {
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
}

// LocalBackend runs a Session in-process against a Controller and feed
type LocalBackend struct {
	controller *Controller
	subscriber feed.Subscriber
	profiles   ProfileReader
	player     model.PlayerID
}

// NewLocalBackend binds a Controller to one player
func NewLocalBackend(controller *Controller, subscriber feed.Subscriber, profiles ProfileReader, player model.PlayerID) *LocalBackend {
	return &LocalBackend{
		controller: controller,
		subscriber: subscriber,
		profiles:   profiles,
		player:     player,
	}
}

// Ensure LocalBackend implements the interface
var _ Backend = (*LocalBackend)(nil)

func (b *LocalBackend) PlayerID() model.PlayerID {
	return b.player
}

func (b *LocalBackend) Create(ctx context.Context) (*model.Duel, error) {
	return b.controller.CreateGame(ctx, b.player)
}

func (b *LocalBackend) Join(ctx context.Context, code string) (*model.Duel, error) {
	return b.controller.JoinGame(ctx, code, b.player)
}

func (b *LocalBackend) Get(ctx context.Context, ref model.DuelRef) (*model.Duel, error) {
	if ref.ID == "" {
		return b.controller.GetGameByRoomCode(ctx, string(ref.RoomCode))
	}
	return b.controller.GetGame(ctx, ref.ID)
}

func (b *LocalBackend) Ready(ctx context.Context, ref model.DuelRef) (*model.Duel, error) {
	return b.controller.SetReady(ctx, ref.ID, b.player)
}

func (b *LocalBackend) Start(ctx context.Context, ref model.DuelRef) (*model.Duel, error) {
	return b.controller.StartRound(ctx, ref.ID)
}

func (b *LocalBackend) React(ctx context.Context, ref model.DuelRef, ms int64) (*model.Duel, error) {
	return b.controller.RecordReaction(ctx, ref.ID, b.player, ms)
}

func (b *LocalBackend) FalseStart(ctx context.Context, ref model.DuelRef) (*model.Duel, error) {
	return b.controller.RecordFalseStart(ctx, ref.ID, b.player)
}

func (b *LocalBackend) Finish(ctx context.Context, ref model.DuelRef) (*model.Duel, error) {
	return b.controller.FinishRound(ctx, ref.ID)
}

func (b *LocalBackend) Rematch(ctx context.Context, ref model.DuelRef, round int) (*model.Duel, error) {
	return b.controller.Rematch(ctx, ref.ID, b.player, round)
}

func (b *LocalBackend) Profile(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	return b.profiles.GetPlayer(ctx, id)
}

func (b *LocalBackend) Subscribe(ctx context.Context, ref model.DuelRef) (feed.Subscription, error) {
	return b.subscriber.Subscribe(ctx, ref.RoomCode)
}

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/mcoot/neurodash/internal/api/handler"
	"github.com/mcoot/neurodash/internal/api/response"
	"github.com/mcoot/neurodash/internal/dependencies/clock"
	"github.com/mcoot/neurodash/internal/feed"
	"github.com/mcoot/neurodash/internal/model"
	"github.com/mcoot/neurodash/internal/services/duel"
	"github.com/mcoot/neurodash/internal/sse"
)

// RemoteBackend drives a duel.Session against the HTTP API. Changes arrive
// over the duel's event stream.
type RemoteBackend struct {
	client *Client
	player model.PlayerID
	clock  clock.Clock
	logger *slog.Logger
}

// NewRemoteBackend binds client to the player its token belongs to
func NewRemoteBackend(client *Client, player model.PlayerID, clk clock.Clock, logger *slog.Logger) *RemoteBackend {
	return &RemoteBackend{
		client: client,
		player: player,
		clock:  clk,
		logger: logger.With(slog.String("component", "remote-backend")),
	}
}

// Ensure RemoteBackend implements the interface
var _ duel.Backend = (*RemoteBackend)(nil)

func (b *RemoteBackend) PlayerID() model.PlayerID {
	return b.player
}

func (b *RemoteBackend) Create(ctx context.Context) (*model.Duel, error) {
	return b.send(ctx, "/api/v1/duels", nil)
}

func (b *RemoteBackend) Join(ctx context.Context, code string) (*model.Duel, error) {
	return b.send(ctx, "/api/v1/duels/join", map[string]string{"room_code": code})
}

func (b *RemoteBackend) Get(ctx context.Context, ref model.DuelRef) (*model.Duel, error) {
	var d response.Duel
	if err := b.client.Get(ctx, duelPath(ref, ""), &d); err != nil {
		return nil, err
	}
	return d.ToModel(), nil
}

func (b *RemoteBackend) Ready(ctx context.Context, ref model.DuelRef) (*model.Duel, error) {
	return b.send(ctx, duelPath(ref, "/ready"), nil)
}

func (b *RemoteBackend) Start(ctx context.Context, ref model.DuelRef) (*model.Duel, error) {
	return b.send(ctx, duelPath(ref, "/start"), nil)
}

func (b *RemoteBackend) React(ctx context.Context, ref model.DuelRef, ms int64) (*model.Duel, error) {
	return b.send(ctx, duelPath(ref, "/reaction"), map[string]int64{"reaction_ms": ms})
}

func (b *RemoteBackend) FalseStart(ctx context.Context, ref model.DuelRef) (*model.Duel, error) {
	return b.send(ctx, duelPath(ref, "/false-start"), nil)
}

func (b *RemoteBackend) Finish(ctx context.Context, ref model.DuelRef) (*model.Duel, error) {
	return b.send(ctx, duelPath(ref, "/finish"), nil)
}

func (b *RemoteBackend) Rematch(ctx context.Context, ref model.DuelRef, round int) (*model.Duel, error) {
	return b.send(ctx, duelPath(ref, "/rematch"), map[string]int{"round": round})
}

func (b *RemoteBackend) Profile(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	var p response.Player
	if err := b.client.Get(ctx, "/api/v1/players/"+url.PathEscape(string(id)), &p); err != nil {
		return nil, err
	}
	return p.ToModel(), nil
}

// Subscribe returns once the server holds the subscription, so no write
// made afterwards is missed
func (b *RemoteBackend) Subscribe(ctx context.Context, ref model.DuelRef) (feed.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	body, err := b.client.Stream(ctx, duelPath(ref, "/events"))
	if err != nil {
		cancel()
		return nil, err
	}

	sub := &remoteSubscription{
		body:    body,
		cancel:  cancel,
		changes: make(chan model.DuelChange, feed.SubscriptionBuffer),
		clock:   b.clock,
		logger:  b.logger.With(slog.String("room_code", string(ref.RoomCode))),
	}
	go sub.run()
	return sub, nil
}

// send posts a transition. A stale answer still carries the current record.
func (b *RemoteBackend) send(ctx context.Context, path string, body any) (*model.Duel, error) {
	var d response.Duel
	stale, err := b.client.Do(ctx, http.MethodPost, path, body, &d)
	if err != nil {
		return nil, err
	}
	if stale {
		return d.ToModel(), fmt.Errorf("%s: %w", path, model.ErrStaleTransition)
	}
	return d.ToModel(), nil
}

func duelPath(ref model.DuelRef, suffix string) string {
	return "/api/v1/duels/" + url.PathEscape(string(ref.RoomCode)) + suffix
}

type remoteSubscription struct {
	body      io.ReadCloser
	cancel    context.CancelFunc
	changes   chan model.DuelChange
	clock     clock.Clock
	closeOnce sync.Once
	logger    *slog.Logger
}

func (s *remoteSubscription) Changes() <-chan model.DuelChange {
	return s.changes
}

func (s *remoteSubscription) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.body.Close()
	})
}

func (s *remoteSubscription) run() {
	defer close(s.changes)
	defer s.Close()

	reader := sse.NewReader(s.body)
	for {
		event, err := reader.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				s.logger.Debug("event stream ended", slog.String("error", err.Error()))
			}
			return
		}
		if event.Name != handler.DuelEvent {
			continue
		}

		var d response.Duel
		if err := json.Unmarshal([]byte(event.Data), &d); err != nil {
			s.logger.Warn("failed to decode duel event", slog.String("error", err.Error()))
			continue
		}
		feed.Deliver(s.changes, feed.NewChange(model.ChangeUpdate, d.ToModel(), s.clock.Now()))
	}
}

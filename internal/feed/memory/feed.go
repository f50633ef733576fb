package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mcoot/neurodash/internal/feed"
	"github.com/mcoot/neurodash/internal/model"
)

// Feed is an in-process change feed with one hub per room
type Feed struct {
	hubs   map[model.RoomCode]*Hub
	mu     sync.RWMutex
	logger *slog.Logger
}

// New creates a new in-process feed
func New(logger *slog.Logger) *Feed {
	return &Feed{
		hubs:   make(map[model.RoomCode]*Hub),
		logger: logger.With(slog.String("component", "feed")),
	}
}

// Ensure Feed implements the interface
var _ feed.Feed = (*Feed)(nil)

// Publish hands the change to the room's hub. Rooms without subscribers
// have no hub and the change is discarded.
func (f *Feed) Publish(ctx context.Context, change model.DuelChange) error {
	if hub := f.GetHub(change.Duel.RoomCode); hub != nil {
		hub.Broadcast(change)
	}
	return nil
}

// Subscribe registers a new subscriber on the room's hub. The hub lookup and
// the registration happen under one lock so CleanupEmptyHubs never sees the
// hub empty in between.
func (f *Feed) Subscribe(ctx context.Context, code model.RoomCode) (feed.Subscription, error) {
	f.mu.Lock()
	hub := f.getOrCreateHubLocked(code)
	sub := newSubscription(hub)
	registered := hub.Register(sub)
	f.mu.Unlock()

	if !registered {
		close(sub.changes)
		return sub, nil
	}

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.closed:
		}
	}()
	return sub, nil
}

// GetOrCreateHub returns the hub for a room, creating one if it doesn't exist
func (f *Feed) GetOrCreateHub(code model.RoomCode) *Hub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getOrCreateHubLocked(code)
}

func (f *Feed) getOrCreateHubLocked(code model.RoomCode) *Hub {
	if hub, ok := f.hubs[code]; ok {
		return hub
	}

	hub := NewHub(code, f.logger)
	f.hubs[code] = hub
	go hub.Run()
	return hub
}

// GetHub returns the hub for a room, or nil if it doesn't exist
func (f *Feed) GetHub(code model.RoomCode) *Hub {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.hubs[code]
}

// RemoveHub removes and closes a hub
func (f *Feed) RemoveHub(code model.RoomCode) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if hub, ok := f.hubs[code]; ok {
		hub.Close()
		delete(f.hubs, code)
		f.logger.Debug("feed hub removed", slog.String("room_code", string(code)))
	}
}

// CleanupEmptyHubs removes hubs with no subscribers
func (f *Feed) CleanupEmptyHubs() {
	f.mu.Lock()
	defer f.mu.Unlock()

	removedCount := 0
	for code, hub := range f.hubs {
		if hub.SubscriberCount() == 0 {
			hub.Close()
			delete(f.hubs, code)
			removedCount++
		}
	}
	if removedCount > 0 {
		f.logger.Info("feed empty hubs cleaned up", slog.Int("removed", removedCount))
	}
}

// Close shuts down every hub
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for code, hub := range f.hubs {
		hub.Close()
		delete(f.hubs, code)
	}
	return nil
}

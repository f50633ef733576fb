package memory

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/neurodash/internal/feed"
	"github.com/mcoot/neurodash/internal/model"
)

// Hub fans out changes for a single room
type Hub struct {
	roomCode    model.RoomCode
	subscribers map[*subscription]bool
	mu          sync.RWMutex
	logger      *slog.Logger

	unregister chan *subscription
	broadcast  chan model.DuelChange
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a new Hub for a room
func NewHub(roomCode model.RoomCode, logger *slog.Logger) *Hub {
	return &Hub{
		roomCode:    roomCode,
		subscribers: make(map[*subscription]bool),
		logger:      logger.With(slog.String("room_code", string(roomCode))),
		unregister:  make(chan *subscription),
		broadcast:   make(chan model.DuelChange, 256),
		done:        make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	h.logger.Debug("feed hub started")
	for {
		select {
		case sub := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subscribers[sub]; ok {
				delete(h.subscribers, sub)
				close(sub.changes)
				count := len(h.subscribers)
				h.mu.Unlock()
				h.logger.Debug("feed subscriber unregistered",
					slog.Duration("subscription_duration", time.Since(sub.subscribedAt)),
					slog.Int("total_subscribers", count))
			} else {
				h.mu.Unlock()
			}

		case change := <-h.broadcast:
			h.mu.RLock()
			dropped := 0
			for sub := range h.subscribers {
				if feed.Deliver(sub.changes, change) {
					dropped++
				}
			}
			h.mu.RUnlock()
			if dropped > 0 {
				h.logger.Warn("feed subscriber lagging - oldest change discarded",
					slog.Int("subscribers", dropped),
					slog.Int64("version", change.Duel.Version))
			}

		case <-h.done:
			h.mu.Lock()
			count := len(h.subscribers)
			for sub := range h.subscribers {
				close(sub.changes)
				delete(h.subscribers, sub)
			}
			h.mu.Unlock()
			h.logger.Debug("feed hub stopped", slog.Int("disconnected_subscribers", count))
			return
		}
	}
}

// Register adds a subscriber to the hub before returning. Returns false if
// the hub is closed.
func (h *Hub) Register(sub *subscription) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-h.done:
		return false
	default:
	}
	h.subscribers[sub] = true
	h.logger.Debug("feed subscriber registered", slog.Int("total_subscribers", len(h.subscribers)))
	return true
}

// Unregister removes a subscriber from the hub
func (h *Hub) Unregister(sub *subscription) {
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

// Broadcast queues a change for every subscriber
func (h *Hub) Broadcast(change model.DuelChange) {
	select {
	case h.broadcast <- change:
	default:
		h.logger.Warn("feed broadcast dropped - hub buffer full",
			slog.Int64("version", change.Duel.Version))
	}
}

// Close shuts down the hub
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// SubscriberCount returns the number of live subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// subscription is one consumer of a hub
type subscription struct {
	hub          *Hub
	changes      chan model.DuelChange
	subscribedAt time.Time
	closeOnce    sync.Once
	closed       chan struct{}
}

func newSubscription(hub *Hub) *subscription {
	return &subscription{
		hub:          hub,
		changes:      make(chan model.DuelChange, feed.SubscriptionBuffer),
		subscribedAt: time.Now(),
		closed:       make(chan struct{}),
	}
}

func (s *subscription) Changes() <-chan model.DuelChange {
	return s.changes
}

func (s *subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.hub.Unregister(s)
	})
}

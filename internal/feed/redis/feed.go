package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/neurodash/internal/feed"
	"github.com/mcoot/neurodash/internal/model"
)

const channelPrefix = "ndash:duel:"

// channelName returns the pub/sub channel for a room
func channelName(code model.RoomCode) string {
	return channelPrefix + string(code)
}

// Feed carries duel changes over Redis pub/sub, one channel per room
type Feed struct {
	client *redis.Client
	logger *slog.Logger
}

// New creates a feed on an existing client. The client is not closed by
// the feed.
func New(client *redis.Client, logger *slog.Logger) *Feed {
	return &Feed{
		client: client,
		logger: logger.With(slog.String("component", "feed"), slog.String("transport", "redis")),
	}
}

// Ensure Feed implements the interface
var _ feed.Feed = (*Feed)(nil)

func (f *Feed) Publish(ctx context.Context, change model.DuelChange) error {
	data, err := feed.Encode(change)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, channelName(change.Duel.RoomCode), data).Err(); err != nil {
		return fmt.Errorf("publish duel change: %w", err)
	}
	return nil
}

// Subscribe waits for the subscription to be confirmed before returning,
// so a publish made afterwards is guaranteed to be seen.
func (f *Feed) Subscribe(ctx context.Context, code model.RoomCode) (feed.Subscription, error) {
	pubsub := f.client.Subscribe(ctx, channelName(code))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to room %s: %w", code, err)
	}

	sub := &subscription{
		pubsub:  pubsub,
		changes: make(chan model.DuelChange, feed.SubscriptionBuffer),
		done:    make(chan struct{}),
		logger:  f.logger.With(slog.String("room_code", string(code))),
	}
	go sub.run(ctx)
	return sub, nil
}

// Close is a no-op; the shared client is owned by the storage layer
func (f *Feed) Close() error {
	return nil
}

type subscription struct {
	pubsub    *redis.PubSub
	changes   chan model.DuelChange
	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.changes)
	messages := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.done:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			change, err := feed.Decode([]byte(msg.Payload))
			if err != nil {
				s.logger.Warn("discarding malformed duel change", slog.String("error", err.Error()))
				continue
			}
			if feed.Deliver(s.changes, change) {
				s.logger.Warn("feed subscriber lagging - oldest change discarded")
			}
		}
	}
}

func (s *subscription) Changes() <-chan model.DuelChange {
	return s.changes
}

func (s *subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.pubsub.Close()
	})
}

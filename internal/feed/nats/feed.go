package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/mcoot/neurodash/internal/feed"
	"github.com/mcoot/neurodash/internal/model"
)

const subjectPrefix = "ndash.duel."

// subject returns the NATS subject for a room
func subject(code model.RoomCode) string {
	return subjectPrefix + string(code)
}

// Feed carries duel changes over core NATS, one subject per room
type Feed struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// Connect dials NATS and returns a feed that owns the connection
func Connect(cfg Config, logger *slog.Logger) (*Feed, error) {
	logger = logger.With(slog.String("component", "feed"), slog.String("transport", "nats"))

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("nats error", slog.String("error", err.Error()))
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Feed{nc: nc, logger: logger}, nil
}

// Ensure Feed implements the interface
var _ feed.Feed = (*Feed)(nil)

func (f *Feed) Publish(ctx context.Context, change model.DuelChange) error {
	data, err := feed.Encode(change)
	if err != nil {
		return err
	}
	if err := f.nc.Publish(subject(change.Duel.RoomCode), data); err != nil {
		return fmt.Errorf("publish duel change: %w", err)
	}
	return nil
}

// Subscribe registers interest and flushes, so the server knows about the
// subscription before this returns
func (f *Feed) Subscribe(ctx context.Context, code model.RoomCode) (feed.Subscription, error) {
	sub := &subscription{
		changes: make(chan model.DuelChange, feed.SubscriptionBuffer),
		done:    make(chan struct{}),
		logger:  f.logger.With(slog.String("room_code", string(code))),
	}

	ns, err := f.nc.Subscribe(subject(code), sub.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe to room %s: %w", code, err)
	}
	sub.ns = ns

	if err := f.nc.FlushWithContext(ctx); err != nil {
		_ = ns.Unsubscribe()
		return nil, fmt.Errorf("flush subscription: %w", err)
	}

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// Close drains pending messages and closes the connection
func (f *Feed) Close() error {
	return f.nc.Drain()
}

type subscription struct {
	ns      *nats.Subscription
	changes chan model.DuelChange
	done    chan struct{}
	logger  *slog.Logger

	// mu serializes the message handler against Close so nothing is
	// delivered on a closed channel
	mu     sync.Mutex
	closed bool
}

// handle runs on the subscription's delivery goroutine, one message at a time
func (s *subscription) handle(msg *nats.Msg) {
	change, err := feed.Decode(msg.Data)
	if err != nil {
		s.logger.Warn("discarding malformed duel change", slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if feed.Deliver(s.changes, change) {
		s.logger.Warn("feed subscriber lagging - oldest change discarded")
	}
}

func (s *subscription) Changes() <-chan model.DuelChange {
	return s.changes
}

func (s *subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	_ = s.ns.Unsubscribe()
	close(s.done)
	close(s.changes)
}

// Package feed delivers duel change events to subscribers of a room code.
// Every event carries the full current row, and subscribers see the
// changes for one room in write order.
package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mcoot/neurodash/internal/model"
)

// SubscriptionBuffer is the per-subscriber event buffer. When it fills,
// the oldest pending change is discarded; later rows supersede it.
const SubscriptionBuffer = 64

// Publisher broadcasts changes to every subscriber of the duel's room
type Publisher interface {
	Publish(ctx context.Context, change model.DuelChange) error
}

// Subscription is a live stream of changes for one room
type Subscription interface {
	// Changes is closed once the subscription ends
	Changes() <-chan model.DuelChange
	Close()
}

// Subscriber opens change streams. The subscription ends when ctx is done
// or Close is called.
type Subscriber interface {
	Subscribe(ctx context.Context, code model.RoomCode) (Subscription, error)
}

// Feed is a complete change feed implementation
type Feed interface {
	Publisher
	Subscriber
	Close() error
}

// NewChange builds an event for a freshly written duel
func NewChange(changeType model.ChangeType, duel *model.Duel, at time.Time) model.DuelChange {
	return model.DuelChange{
		Type:      changeType,
		Duel:      *duel.Clone(),
		Timestamp: at,
	}
}

// Deliver pushes a change to ch without blocking. If ch is full the oldest
// buffered change is dropped first. Only the channel's single writer may
// call it.
func Deliver(ch chan model.DuelChange, change model.DuelChange) (dropped bool) {
	for {
		select {
		case ch <- change:
			return dropped
		default:
		}
		select {
		case <-ch:
			dropped = true
		default:
		}
	}
}

// Encode serializes a change for transports that carry bytes
func Encode(change model.DuelChange) ([]byte, error) {
	return json.Marshal(change)
}

// Decode is the inverse of Encode
func Decode(data []byte) (model.DuelChange, error) {
	var change model.DuelChange
	err := json.Unmarshal(data, &change)
	return change, err
}

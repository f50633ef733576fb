package mocks

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcoot/neurodash/internal/dependencies/clock"
)

// Ensure the fake clock implements Clock
var _ clock.Clock = (*clockwork.FakeClock)(nil)

// NewMockClock creates a fake clock set to the given time.
// Advance moves it forward and fires any timers that come due.
func NewMockClock(t time.Time) *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(t)
}

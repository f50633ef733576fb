package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock provides time operations that can be mocked for testing.
// Timers returned by AfterFunc must be stoppable so pending phase
// transitions can be cancelled.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	AfterFunc(d time.Duration, f func()) clockwork.Timer
	NewTimer(d time.Duration) clockwork.Timer
	NewTicker(d time.Duration) clockwork.Ticker
}

// New creates a Clock backed by the system clock
func New() Clock {
	return clockwork.NewRealClock()
}

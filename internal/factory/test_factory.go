package factory

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcoot/neurodash/internal/dependencies/mocks"
	feedmemory "github.com/mcoot/neurodash/internal/feed/memory"
	"github.com/mcoot/neurodash/internal/services/auth"
	"github.com/mcoot/neurodash/internal/services/duel"
	"github.com/mcoot/neurodash/internal/storage/memory"
	"github.com/mcoot/neurodash/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *clockwork.FakeClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	logger := testutil.NopLogger()
	store := memory.New()
	changes := feedmemory.New(logger)
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(store, changes, mockClock, mockRandom, auth.DefaultConfig(), duel.DefaultSessionConfig(), logger)

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}

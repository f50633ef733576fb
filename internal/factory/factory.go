package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mcoot/neurodash/internal/dependencies/clock"
	"github.com/mcoot/neurodash/internal/dependencies/random"
	"github.com/mcoot/neurodash/internal/feed"
	feedmemory "github.com/mcoot/neurodash/internal/feed/memory"
	feednats "github.com/mcoot/neurodash/internal/feed/nats"
	feedredis "github.com/mcoot/neurodash/internal/feed/redis"
	"github.com/mcoot/neurodash/internal/services/auth"
	"github.com/mcoot/neurodash/internal/services/bot"
	"github.com/mcoot/neurodash/internal/services/duel"
	"github.com/mcoot/neurodash/internal/storage"
	"github.com/mcoot/neurodash/internal/storage/memory"
	pgstorage "github.com/mcoot/neurodash/internal/storage/postgres"
	redisstorage "github.com/mcoot/neurodash/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypePostgres = "postgres"
)

// Feed type constants
const (
	FeedTypeMemory = "memory"
	FeedTypeRedis  = "redis"
	FeedTypeNATS   = "nats"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage
	Feed    feed.Feed

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	AuthService    *auth.Service
	DuelController *duel.Controller
	BotService     *bot.Service

	closers []io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// SessionConfig holds the duel timings used by bots (optional)
	// If zero value, defaults to duel.DefaultSessionConfig()
	SessionConfig duel.SessionConfig
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger

	// StorageType selects the storage backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType
	// or FeedType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresConfig holds Postgres connection settings (required if
	// StorageType is "postgres")
	PostgresConfig *pgstorage.Config

	// FeedType selects the change feed ("memory", "redis" or "nats")
	// If empty, defaults to "memory"
	FeedType string
	// NATSConfig holds NATS connection settings (required if FeedType is "nats")
	NATSConfig *feednats.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var closers []io.Closer
	fail := func(err error) (*App, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
		return nil, err
	}

	// Create storage based on type
	var store storage.Storage
	var redisStore *redisstorage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		s, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		store, redisStore = s, s
		closers = append(closers, s)
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		s, err := pgstorage.New(context.Background(), *cfg.PostgresConfig)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, s)
		if err := s.Migrate(context.Background()); err != nil {
			return fail(err)
		}
		store = s
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'postgres'")
	}

	// Create the change feed
	var changes feed.Feed
	feedType := cfg.FeedType
	if feedType == "" {
		feedType = FeedTypeMemory
	}

	switch feedType {
	case FeedTypeMemory:
		changes = feedmemory.New(logger)
	case FeedTypeRedis:
		// Share the storage connection when both live in Redis
		if redisStore == nil {
			if cfg.RedisConfig == nil {
				return fail(errors.New("RedisConfig required when FeedType is redis"))
			}
			s, err := redisstorage.New(*cfg.RedisConfig)
			if err != nil {
				return fail(fmt.Errorf("connect to redis: %w", err))
			}
			redisStore = s
			closers = append(closers, s)
		}
		changes = feedredis.New(redisStore.Client(), logger)
	case FeedTypeNATS:
		if cfg.NATSConfig == nil {
			return fail(errors.New("NATSConfig required when FeedType is nats"))
		}
		f, err := feednats.Connect(*cfg.NATSConfig, logger)
		if err != nil {
			return fail(err)
		}
		changes = f
	default:
		return fail(errors.New("invalid FeedType: must be 'memory', 'redis' or 'nats'"))
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	// Use default auth config if not provided
	authCfg := cfg.AuthConfig
	if authCfg.SessionDuration == 0 {
		authCfg = auth.DefaultConfig()
	}
	sessionCfg := cfg.SessionConfig
	if sessionCfg.DisconnectTimeout == 0 {
		sessionCfg = duel.DefaultSessionConfig()
	}

	app := newWithDependencies(store, changes, clk, rnd, authCfg, sessionCfg, logger)
	app.closers = closers
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	changes feed.Feed,
	clk clock.Clock,
	rnd random.Random,
	authCfg auth.Config,
	sessionCfg duel.SessionConfig,
	logger *slog.Logger,
) *App {
	// Create services
	authService := auth.New(store, clk, authCfg)
	duelController := duel.NewController(store, changes, clk, rnd, logger)
	duelController.SetRoundObserver(authService)

	strategies := map[string]bot.Strategy{
		bot.StrategyRandom: bot.NewRandomStrategy(rnd),
	}
	botService := bot.NewService(authService, duelController, changes, strategies, clk, rnd, sessionCfg, logger)

	return &App{
		Storage:        store,
		Feed:           changes,
		Clock:          clk,
		Random:         rnd,
		AuthService:    authService,
		DuelController: duelController,
		BotService:     botService,
	}
}

// RunJanitor periodically drops expired sessions and idle feed hubs until
// ctx is done
func (a *App) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := a.Clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			a.AuthService.CleanExpiredSessions()
			if hubs, ok := a.Feed.(*feedmemory.Feed); ok {
				hubs.CleanupEmptyHubs()
			}
		}
	}
}

// Close stops bots, then releases the feed and storage connections
func (a *App) Close() error {
	a.BotService.Close()
	errs := []error{a.Feed.Close()}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

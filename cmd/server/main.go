package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mcoot/neurodash/internal/api"
	"github.com/mcoot/neurodash/internal/factory"
	feednats "github.com/mcoot/neurodash/internal/feed/nats"
	"github.com/mcoot/neurodash/internal/services/duel"
	pgstorage "github.com/mcoot/neurodash/internal/storage/postgres"
	redisstorage "github.com/mcoot/neurodash/internal/storage/redis"
)

const janitorInterval = 5 * time.Minute

func main() {
	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("could not load .env file", slog.String("error", err.Error()))
	}

	cfg, err := configFromEnv(logger)
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Create application factory
	app, err := factory.New(cfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close application", slog.String("error", err.Error()))
		}
	}()

	// Create API router
	apiRouter := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		AuthService:    app.AuthService,
		DuelController: app.DuelController,
		BotService:     app.BotService,
		Subscriber:     app.Feed,
	})

	// Create server
	serverConfig := api.DefaultServerConfig()
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			logger.Error("invalid PORT", slog.String("port", port))
			os.Exit(1)
		}
		serverConfig.Port = p
	}
	server := api.NewServer(apiRouter, serverConfig, logger)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go app.RunJanitor(ctx, janitorInterval)

	if err := server.Listen(); err != nil {
		logger.Error("failed to listen", slog.String("error", err.Error()))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", orDefault(cfg.StorageType, factory.StorageTypeMemory)),
		slog.String("feed", orDefault(cfg.FeedType, factory.FeedTypeMemory)))

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			return
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			return
		}
	}

	logger.Info("server stopped")
}

// configFromEnv builds the factory config from environment variables
func configFromEnv(logger *slog.Logger) (factory.Config, error) {
	cfg := factory.Config{
		Logger:      logger,
		StorageType: os.Getenv("STORAGE_TYPE"),
		FeedType:    os.Getenv("FEED_TYPE"),
	}

	// Redis serves as storage, feed or both
	if cfg.StorageType == factory.StorageTypeRedis || cfg.FeedType == factory.FeedTypeRedis {
		redisURL := os.Getenv("REDIS_URL")
		if redisURL == "" {
			return cfg, errors.New("REDIS_URL is required")
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = redisURL
		cfg.RedisConfig = &redisCfg
	}

	if cfg.StorageType == factory.StorageTypePostgres {
		pgURL := os.Getenv("POSTGRES_URL")
		if pgURL == "" {
			return cfg, errors.New("POSTGRES_URL is required")
		}
		pgCfg := pgstorage.DefaultConfig()
		pgCfg.URL = pgURL
		cfg.PostgresConfig = &pgCfg
	}

	if cfg.FeedType == factory.FeedTypeNATS {
		natsCfg := feednats.DefaultConfig()
		if url := os.Getenv("NATS_URL"); url != "" {
			natsCfg.URL = url
		}
		natsCfg.Token = os.Getenv("NATS_TOKEN")
		cfg.NATSConfig = &natsCfg
	}

	sessionCfg := duel.DefaultSessionConfig()
	if raw := os.Getenv("DISCONNECT_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return cfg, err
		}
		sessionCfg.DisconnectTimeout = d
	}
	cfg.SessionConfig = sessionCfg

	return cfg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

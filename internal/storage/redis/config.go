package redis

import "time"

// Config holds Redis connection and retention settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379/0)
	URL string

	PoolSize     int
	MinIdleConns int
	// DialTimeout bounds the initial connect and ping
	DialTimeout time.Duration

	// Guests and duels expire; registered accounts do not
	GuestPlayerTTL time.Duration
	DuelTTL        time.Duration
}

// DefaultConfig returns the settings used when only a URL is supplied
func DefaultConfig() Config {
	return Config{
		URL:            "redis://localhost:6379",
		PoolSize:       10,
		MinIdleConns:   2,
		DialTimeout:    5 * time.Second,
		GuestPlayerTTL: 24 * time.Hour,
		DuelTTL:        6 * time.Hour,
	}
}

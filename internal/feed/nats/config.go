package nats

import (
	"time"

	"github.com/nats-io/nats.go"
)

// Config holds NATS connection settings
type Config struct {
	URL           string
	Token         string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns sensible defaults for NATS configuration
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "neurodash",
		MaxReconnects: -1, // Infinite reconnects
		ReconnectWait: 2 * time.Second,
	}
}

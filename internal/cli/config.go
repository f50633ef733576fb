package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcoot/neurodash/internal/services/duel"
)

// ErrNoRoom is returned when a duel command has no room code to act on
var ErrNoRoom = errors.New("no room code: pass one, set NDASH_ROOM, or create/join a duel first")

// Config holds the ndash client settings. Flags override the environment.
type Config struct {
	ServerURL string
	Token     string
	// TokenFile persists the session token between invocations. The last
	// created or joined room is remembered next to it.
	TokenFile string
	// Room is the default room code for duel commands
	Room    string
	Output  string
	Verbose bool
}

// DefaultConfig reads NDASH_SERVER, NDASH_TOKEN, NDASH_TOKEN_FILE and
// NDASH_ROOM
func DefaultConfig() *Config {
	return &Config{
		ServerURL: envOr("NDASH_SERVER", "http://localhost:8080"),
		Token:     os.Getenv("NDASH_TOKEN"),
		TokenFile: envOr("NDASH_TOKEN_FILE", defaultTokenFile()),
		Room:      os.Getenv("NDASH_ROOM"),
		Output:    "text",
	}
}

// Validate rejects settings no command can work with
func (c *Config) Validate() error {
	switch c.Output {
	case "text", "json":
	default:
		return fmt.Errorf("unknown output format %q: use text or json", c.Output)
	}
	if c.ServerURL == "" {
		return errors.New("server URL must not be empty")
	}
	return nil
}

// LoadToken reads the token file unless a token was given directly
func (c *Config) LoadToken() error {
	if c.Token != "" {
		return nil
	}

	token, err := readState(c.TokenFile)
	if err != nil {
		return err
	}
	c.Token = token
	return nil
}

// SaveToken stores the token for later invocations
func (c *Config) SaveToken(token string) error {
	c.Token = token
	return writeState(c.TokenFile, token)
}

// ResolveRoom picks the room a duel command acts on: the argument, then
// NDASH_ROOM, then the remembered room
func (c *Config) ResolveRoom(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if c.Room != "" {
		return c.Room, nil
	}

	code, err := readState(c.roomFile())
	if err != nil {
		return "", err
	}
	if code == "" {
		return "", ErrNoRoom
	}
	return code, nil
}

// RememberRoom stores code as the default for later duel commands
func (c *Config) RememberRoom(code string) error {
	normalized, err := duel.NormalizeRoomCode(code)
	if err != nil {
		return err
	}
	c.Room = string(normalized)
	return writeState(c.roomFile(), c.Room)
}

func (c *Config) roomFile() string {
	return filepath.Join(filepath.Dir(c.TokenFile), "room")
}

// readState returns the trimmed file content, or empty if it does not exist
func readState(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func writeState(path, value string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(value+"\n"), 0o600)
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".ndash", "token")
	}
	return filepath.Join(home, ".ndash", "token")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

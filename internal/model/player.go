package model

import "time"

// PlayerID uniquely identifies a player across the system
type PlayerID string

// Player is the profile projection of a participant.
// The duel core only reads it (for display); the identity service owns it.
type Player struct {
	ID          PlayerID
	Username    string // empty for guests
	FullName    string
	DisplayName string
	IsGuest     bool // true for unregistered players
	IsBot       bool
	BotStrategy string

	// AverageReactionTime is the player's historical mean in milliseconds, 0 if unknown
	AverageReactionTime int64
	ReactionSamples     int64

	CreatedAt time.Time
}

// Name returns the best label for display
func (p *Player) Name() string {
	switch {
	case p.DisplayName != "":
		return p.DisplayName
	case p.FullName != "":
		return p.FullName
	case p.Username != "":
		return p.Username
	default:
		return string(p.ID)
	}
}

// RegisteredPlayer extends Player with authentication data
// Stored separately for security (password never in memory with session)
type RegisteredPlayer struct {
	PlayerID     PlayerID
	Username     string // login username (immutable)
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

package response

import (
	"time"

	"github.com/mcoot/neurodash/internal/model"
	"github.com/mcoot/neurodash/internal/services/auth"
)

// Player represents a player in API responses
type Player struct {
	ID                  string `json:"id"`
	Username            string `json:"username,omitempty"`
	FullName            string `json:"full_name,omitempty"`
	DisplayName         string `json:"display_name"`
	IsGuest             bool   `json:"is_guest"`
	IsBot               bool   `json:"is_bot,omitempty"`
	BotStrategy         string `json:"bot_strategy,omitempty"`
	AverageReactionTime int64  `json:"average_reaction_ms"`
	ReactionSamples     int64  `json:"reaction_samples"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	return Player{
		ID:                  string(p.ID),
		Username:            p.Username,
		FullName:            p.FullName,
		DisplayName:         p.DisplayName,
		IsGuest:             p.IsGuest,
		IsBot:               p.IsBot,
		BotStrategy:         p.BotStrategy,
		AverageReactionTime: p.AverageReactionTime,
		ReactionSamples:     p.ReactionSamples,
	}
}

// ToModel converts the response back into a model.Player
func (p Player) ToModel() *model.Player {
	return &model.Player{
		ID:                  model.PlayerID(p.ID),
		Username:            p.Username,
		FullName:            p.FullName,
		DisplayName:         p.DisplayName,
		IsGuest:             p.IsGuest,
		IsBot:               p.IsBot,
		BotStrategy:         p.BotStrategy,
		AverageReactionTime: p.AverageReactionTime,
		ReactionSamples:     p.ReactionSamples,
	}
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Player       Player `json:"player"`
	SessionToken string `json:"session_token"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *auth.Session) AuthResponse {
	return AuthResponse{
		Player:       PlayerFromModel(&s.Player),
		SessionToken: s.Token,
	}
}

// Duel is the full shared record of a duel
type Duel struct {
	ID                  string     `json:"id"`
	RoomCode            string     `json:"room_code"`
	Status              string     `json:"status"`
	Player1ID           string     `json:"player1_id"`
	Player2ID           string     `json:"player2_id,omitempty"`
	Player1Ready        bool       `json:"player1_ready"`
	Player2Ready        bool       `json:"player2_ready"`
	StartTimestamp      *time.Time `json:"start_timestamp,omitempty"`
	Player1ReactionTime *int64     `json:"player1_reaction_time,omitempty"`
	Player2ReactionTime *int64     `json:"player2_reaction_time,omitempty"`
	Player1FalseStart   bool       `json:"player1_false_start"`
	Player2FalseStart   bool       `json:"player2_false_start"`
	WinnerID            string     `json:"winner_id,omitempty"`
	Round               int        `json:"round"`
	Version             int64      `json:"version"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// DuelFromModel converts a model.Duel to a response Duel
func DuelFromModel(d *model.Duel) Duel {
	c := d.Clone()
	return Duel{
		ID:                  string(c.ID),
		RoomCode:            string(c.RoomCode),
		Status:              string(c.Status),
		Player1ID:           string(c.Player1ID),
		Player2ID:           string(c.Player2ID),
		Player1Ready:        c.Player1Ready,
		Player2Ready:        c.Player2Ready,
		StartTimestamp:      c.StartTimestamp,
		Player1ReactionTime: c.Player1ReactionTime,
		Player2ReactionTime: c.Player2ReactionTime,
		Player1FalseStart:   c.Player1FalseStart,
		Player2FalseStart:   c.Player2FalseStart,
		WinnerID:            string(c.WinnerID),
		Round:               c.Round,
		Version:             c.Version,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

// ToModel converts the response back into a model.Duel
func (d Duel) ToModel() *model.Duel {
	return &model.Duel{
		ID:                  model.DuelID(d.ID),
		RoomCode:            model.RoomCode(d.RoomCode),
		Status:              model.DuelStatus(d.Status),
		Player1ID:           model.PlayerID(d.Player1ID),
		Player2ID:           model.PlayerID(d.Player2ID),
		Player1Ready:        d.Player1Ready,
		Player2Ready:        d.Player2Ready,
		StartTimestamp:      d.StartTimestamp,
		Player1ReactionTime: d.Player1ReactionTime,
		Player2ReactionTime: d.Player2ReactionTime,
		Player1FalseStart:   d.Player1FalseStart,
		Player2FalseStart:   d.Player2FalseStart,
		WinnerID:            model.PlayerID(d.WinnerID),
		Round:               d.Round,
		Version:             d.Version,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

// Health is the response for the health endpoint
type Health struct {
	Status string `json:"status"`
}

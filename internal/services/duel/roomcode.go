package duel

import (
	"strings"

	"github.com/mcoot/neurodash/internal/model"
)

const (
	// RoomCodeLength is the length of generated room codes
	RoomCodeLength = 6
	// RoomCodeAlphabet is the characters used in generated room codes (avoid confusing chars)
	RoomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// maxCodeAttempts bounds room code generation when codes collide
	maxCodeAttempts = 20
)

// NormalizeRoomCode trims and uppercases user input and checks it is six
// characters from [A-Z0-9]. Input codes are accepted from the full
// alphanumeric range even though generated codes avoid ambiguous characters.
func NormalizeRoomCode(raw string) (model.RoomCode, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != RoomCodeLength {
		return "", model.ErrInvalidRoomCode
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", model.ErrInvalidRoomCode
		}
	}
	return model.RoomCode(code), nil
}

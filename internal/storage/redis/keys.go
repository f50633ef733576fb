package redis

import (
	"fmt"

	"github.com/mcoot/neurodash/internal/model"
)

// Key prefix for all duel-related data
const keyPrefix = "ndash"

// playerKey returns the Redis key for a Player
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// registeredPlayerKey returns the Redis key for a RegisteredPlayer
func registeredPlayerKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:registered_player:%s", keyPrefix, playerID)
}

// usernameIndexKey returns the Redis key for the username -> player_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// duelKey returns the Redis key for a Duel
func duelKey(id model.DuelID) string {
	return fmt.Sprintf("%s:duel:%s", keyPrefix, id)
}

// roomCodeIndexKey returns the Redis key for the room_code -> duel_id index
func roomCodeIndexKey(code model.RoomCode) string {
	return fmt.Sprintf("%s:idx:room:%s", keyPrefix, code)
}

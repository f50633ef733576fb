package model

import "errors"

// Common errors used across the application
var (
	// Player errors
	ErrPlayerNotFound = errors.New("player not found")

	// Matchmaking errors
	ErrCreateFailed    = errors.New("failed to create game")
	ErrDuelNotFound    = errors.New("invalid or expired room code")
	ErrRoomFull        = errors.New("room is full")
	ErrInvalidRoomCode = errors.New("room code must be 6 characters A-Z or 0-9")
	ErrRoomCodeTaken   = errors.New("room code already in use")
	ErrSelfJoin        = errors.New("cannot join your own room")
	ErrNotInDuel       = errors.New("player is not in this duel")

	// Round errors
	ErrRoundNotStarted     = errors.New("round has not started")
	ErrInvalidReactionTime = errors.New("reaction time out of range")

	// ErrStaleTransition means a guarded update found the record already
	// past the expected prior state. Callers treat it as a no-op.
	ErrStaleTransition = errors.New("stale transition")

	// ErrOpponentDisconnected is surfaced when the opponent never reports
	ErrOpponentDisconnected = errors.New("opponent disconnected")
)

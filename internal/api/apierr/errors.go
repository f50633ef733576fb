package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mcoot/neurodash/internal/model"
	"github.com/mcoot/neurodash/internal/services/auth"
	"github.com/mcoot/neurodash/internal/services/bot"
	"github.com/mcoot/neurodash/internal/storage"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodePlayerNotFound      = "PLAYER_NOT_FOUND"
	CodeCreateFailed        = "CREATE_FAILED"
	CodeDuelNotFound        = "DUEL_NOT_FOUND"
	CodeRoomFull            = "ROOM_FULL"
	CodeInvalidRoomCode     = "INVALID_ROOM_CODE"
	CodeSelfJoin            = "SELF_JOIN"
	CodeNotInDuel           = "NOT_IN_DUEL"
	CodeRoundNotStarted     = "ROUND_NOT_STARTED"
	CodeInvalidReactionTime = "INVALID_REACTION_TIME"
	CodeUpdateConflict      = "UPDATE_CONFLICT"
	CodeUnknownStrategy     = "UNKNOWN_STRATEGY"
	CodeUsernameExists      = "USERNAME_EXISTS"
	CodeInvalidUsername     = "INVALID_USERNAME"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeInternalError       = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// mappings pair each sentinel with its HTTP rendering. Order matters: wrapped
// create failures also wrap the underlying cause.
var mappings = []struct {
	err    error
	status int
	code   string
	msg    string
}{
	{model.ErrCreateFailed, http.StatusServiceUnavailable, CodeCreateFailed, "Could not create a game, try again"},
	{model.ErrPlayerNotFound, http.StatusNotFound, CodePlayerNotFound, "Player not found"},
	{model.ErrDuelNotFound, http.StatusNotFound, CodeDuelNotFound, "Invalid or expired room code"},
	{model.ErrRoomFull, http.StatusConflict, CodeRoomFull, "Room is full"},
	{model.ErrInvalidRoomCode, http.StatusBadRequest, CodeInvalidRoomCode, "Room code must be 6 characters A-Z or 0-9"},
	{model.ErrSelfJoin, http.StatusConflict, CodeSelfJoin, "Cannot join your own room"},
	{model.ErrNotInDuel, http.StatusForbidden, CodeNotInDuel, "Not a player in this duel"},
	{model.ErrRoundNotStarted, http.StatusConflict, CodeRoundNotStarted, "Round has not started"},
	{model.ErrInvalidReactionTime, http.StatusBadRequest, CodeInvalidReactionTime, "Reaction time out of range"},
	{storage.ErrUpdateConflict, http.StatusConflict, CodeUpdateConflict, "Duel is busy, try again"},
	{bot.ErrUnknownStrategy, http.StatusBadRequest, CodeUnknownStrategy, "Unknown bot strategy"},

	{auth.ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid username or password"},
	{auth.ErrInvalidSession, http.StatusUnauthorized, CodeUnauthorized, "Invalid or expired session"},
	{auth.ErrUsernameExists, http.StatusConflict, CodeUsernameExists, "Username already exists"},
	{auth.ErrInvalidUsername, http.StatusBadRequest, CodeInvalidUsername, "Username must not be empty"},
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return &httpError{m.status, APIError{m.code, m.msg}}
		}
	}
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}

// FromResponse turns an error body back into an error that matches the
// original sentinel with errors.Is, for API clients
func FromResponse(status int, resp ErrorResponse) error {
	for _, m := range mappings {
		if m.code == resp.Error.Code {
			return fmt.Errorf("%s: %w", resp.Error.Message, m.err)
		}
	}
	if resp.Error.Code != "" {
		return fmt.Errorf("%s (%s)", resp.Error.Message, resp.Error.Code)
	}
	return fmt.Errorf("HTTP %d", status)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}

package request

// CreateGuestRequest is the request body for creating a guest player
type CreateGuestRequest struct {
	DisplayName string `json:"display_name"`
}

// RegisterRequest is the request body for registering a player
type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	FullName    string `json:"full_name,omitempty"`
	DisplayName string `json:"display_name"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// JoinDuelRequest is the request body for joining a duel by room code
type JoinDuelRequest struct {
	RoomCode string `json:"room_code"`
}

// ReactionRequest is the request body for reporting a reaction time
type ReactionRequest struct {
	ReactionMs int64 `json:"reaction_ms"`
}

// RematchRequest is the request body for a rematch. Round is the round the
// caller saw finish; zero means the duel's current round.
type RematchRequest struct {
	Round int `json:"round,omitempty"`
}

// AddBotRequest is the request body for adding a bot opponent
type AddBotRequest struct {
	Strategy string `json:"strategy,omitempty"`
}

package model

import "time"

// DuelID uniquely identifies a duel record
type DuelID string

// RoomCode is the six character human-shareable join key for a duel
type RoomCode string

// DuelStatus is the persisted status of a duel
type DuelStatus string

const (
	DuelStatusWaiting  DuelStatus = "waiting"  // Created, second seat empty
	DuelStatusReady    DuelStatus = "ready"    // Both seats filled, waiting on ready flags
	DuelStatusStarted  DuelStatus = "started"  // Both ready, round in progress
	DuelStatusFinished DuelStatus = "finished" // Both reported, winner resolved
)

// DuelRef addresses a duel both by ID and by room code
type DuelRef struct {
	ID       DuelID
	RoomCode RoomCode
}

// Duel is the shared record for one two-player reaction duel.
// Both participants write to it; no client owns it exclusively.
type Duel struct {
	ID       DuelID
	RoomCode RoomCode
	Status   DuelStatus

	Player1ID PlayerID
	Player2ID PlayerID // Empty until a second player joins

	Player1Ready bool
	Player2Ready bool

	// StartTimestamp is stamped when the round moves to started
	StartTimestamp *time.Time

	// Reaction times in milliseconds, nil until reported
	Player1ReactionTime *int64
	Player2ReactionTime *int64

	Player1FalseStart bool
	Player2FalseStart bool

	WinnerID PlayerID // Empty until finished, and on a double false start

	Round   int   // 1-based, incremented by rematch
	Version int64 // Incremented on every write

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ref returns the duel's addressing pair
func (d *Duel) Ref() DuelRef {
	return DuelRef{ID: d.ID, RoomCode: d.RoomCode}
}

// Clone returns a deep copy of the duel
func (d *Duel) Clone() *Duel {
	c := *d
	if d.StartTimestamp != nil {
		t := *d.StartTimestamp
		c.StartTimestamp = &t
	}
	if d.Player1ReactionTime != nil {
		v := *d.Player1ReactionTime
		c.Player1ReactionTime = &v
	}
	if d.Player2ReactionTime != nil {
		v := *d.Player2ReactionTime
		c.Player2ReactionTime = &v
	}
	return &c
}

// Seat returns 1 or 2 for a participant, 0 otherwise
func (d *Duel) Seat(playerID PlayerID) int {
	switch {
	case playerID == "":
		return 0
	case playerID == d.Player1ID:
		return 1
	case playerID == d.Player2ID:
		return 2
	default:
		return 0
	}
}

// HasPlayer returns true if the player holds a seat
func (d *Duel) HasPlayer(playerID PlayerID) bool {
	return d.Seat(playerID) != 0
}

// IsFull returns true once both seats are taken
func (d *Duel) IsFull() bool {
	return d.Player1ID != "" && d.Player2ID != ""
}

// Opponent returns the other participant, or empty if none
func (d *Duel) Opponent(playerID PlayerID) PlayerID {
	switch d.Seat(playerID) {
	case 1:
		return d.Player2ID
	case 2:
		return d.Player1ID
	default:
		return ""
	}
}

// IsReady returns the ready flag for a participant
func (d *Duel) IsReady(playerID PlayerID) bool {
	switch d.Seat(playerID) {
	case 1:
		return d.Player1Ready
	case 2:
		return d.Player2Ready
	default:
		return false
	}
}

// BothReady returns true if both seats are filled and flagged ready
func (d *Duel) BothReady() bool {
	return d.IsFull() && d.Player1Ready && d.Player2Ready
}

// ReactionTime returns the reported reaction time for a participant
func (d *Duel) ReactionTime(playerID PlayerID) *int64 {
	switch d.Seat(playerID) {
	case 1:
		return d.Player1ReactionTime
	case 2:
		return d.Player2ReactionTime
	default:
		return nil
	}
}

// FalseStarted returns true if the participant clicked before the go signal
func (d *Duel) FalseStarted(playerID PlayerID) bool {
	switch d.Seat(playerID) {
	case 1:
		return d.Player1FalseStart
	case 2:
		return d.Player2FalseStart
	default:
		return false
	}
}

// HasReported returns true if the participant recorded a time or a false start
func (d *Duel) HasReported(playerID PlayerID) bool {
	return d.ReactionTime(playerID) != nil || d.FalseStarted(playerID)
}

// BothReported returns true once both participants have reported this round
func (d *Duel) BothReported() bool {
	return d.IsFull() && d.HasReported(d.Player1ID) && d.HasReported(d.Player2ID)
}

// SetReady sets the ready flag for a seat
func (d *Duel) SetReady(playerID PlayerID) {
	switch d.Seat(playerID) {
	case 1:
		d.Player1Ready = true
	case 2:
		d.Player2Ready = true
	}
}

// SetReactionTime records a reaction time for a seat
func (d *Duel) SetReactionTime(playerID PlayerID, ms int64) {
	switch d.Seat(playerID) {
	case 1:
		d.Player1ReactionTime = &ms
	case 2:
		d.Player2ReactionTime = &ms
	}
}

// SetFalseStart marks a seat as having false-started
func (d *Duel) SetFalseStart(playerID PlayerID) {
	switch d.Seat(playerID) {
	case 1:
		d.Player1FalseStart = true
	case 2:
		d.Player2FalseStart = true
	}
}

// ResetRound clears every per-round field and keeps room and participants
func (d *Duel) ResetRound() {
	d.Player1Ready = false
	d.Player2Ready = false
	d.StartTimestamp = nil
	d.Player1ReactionTime = nil
	d.Player2ReactionTime = nil
	d.Player1FalseStart = false
	d.Player2FalseStart = false
	d.WinnerID = ""
}

package model

import "time"

// ChangeType identifies what kind of write produced a change event
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
)

// DuelChange is delivered by the change feed on every insert or update of a
// duel. It always carries the full current row, never a delta.
type DuelChange struct {
	Type      ChangeType
	Duel      Duel
	Timestamp time.Time
}

package duel

import (
	"time"

	"github.com/mcoot/neurodash/internal/model"
)

// Phase is the locally derived screen a player is on. Only the duel's
// status is persisted; countdown, active and clicked exist per client.
type Phase string

const (
	PhaseWaiting   Phase = "waiting"   // Waiting for an opponent to join
	PhaseReady     Phase = "ready"     // Both seated, waiting on ready flags
	PhaseCountdown Phase = "countdown" // Round started, go signal pending
	PhaseActive    Phase = "active"    // Go signal shown, measuring reaction
	PhaseClicked   Phase = "clicked"   // Reported, waiting for the opponent
	PhaseResults   Phase = "results"   // Round finished
)

// LocalRound is the client-only state for one round. It is discarded
// whenever the duel's Round changes.
type LocalRound struct {
	Round int

	// Scheduled is set once the countdown timer has been armed
	Scheduled bool

	// Active is set when the go signal fires; ActiveAt is its instant on
	// the local clock and the zero point for the reaction measurement
	Active   bool
	ActiveAt time.Time

	Clicked    bool
	FalseStart bool
	ReactionMs int64
}

// phaseRule derives the phase for one persisted status
type phaseRule func(d *model.Duel, me model.PlayerID, local LocalRound) Phase

var phaseRules = map[model.DuelStatus]phaseRule{
	model.DuelStatusWaiting:  waitingPhase,
	model.DuelStatusReady:    readyPhase,
	model.DuelStatusStarted:  startedPhase,
	model.DuelStatusFinished: finishedPhase,
}

// DerivePhase computes the phase from the latest record and the local round
// state. With a zero LocalRound it depends on the record alone, so a client
// that attaches mid-round lands where one that saw every change would.
func DerivePhase(d *model.Duel, me model.PlayerID, local LocalRound) Phase {
	if d == nil {
		return PhaseWaiting
	}
	rule, ok := phaseRules[d.Status]
	if !ok {
		return PhaseWaiting
	}
	if local.Round != d.Round {
		local = LocalRound{Round: d.Round}
	}
	return rule(d, me, local)
}

func waitingPhase(d *model.Duel, _ model.PlayerID, _ LocalRound) Phase {
	if d.IsFull() {
		return PhaseReady
	}
	return PhaseWaiting
}

func readyPhase(_ *model.Duel, _ model.PlayerID, _ LocalRound) Phase {
	return PhaseReady
}

func startedPhase(d *model.Duel, me model.PlayerID, local LocalRound) Phase {
	switch {
	case d.HasReported(me), local.Clicked:
		return PhaseClicked
	case local.Active:
		return PhaseActive
	default:
		return PhaseCountdown
	}
}

func finishedPhase(_ *model.Duel, _ model.PlayerID, _ LocalRound) Phase {
	return PhaseResults
}

package duel

import "github.com/mcoot/neurodash/internal/model"

// Outcome is a round result from one player's point of view
type Outcome string

const (
	OutcomeNone                 Outcome = ""
	OutcomeWon                  Outcome = "won"
	OutcomeLost                 Outcome = "lost"
	OutcomeDraw                 Outcome = "draw"
	OutcomeWonFalseStart        Outcome = "won_false_start"  // Opponent clicked early
	OutcomeLostFalseStart       Outcome = "lost_false_start" // We clicked early
	OutcomeOpponentDisconnected Outcome = "opponent_disconnected"
)

// DetermineWinner resolves the winner of a fully reported round.
//
// A false start loses regardless of the opponent's time, and two false
// starts produce no winner. Otherwise the strictly smaller time wins and
// equal times go to the lexicographically lower player ID. Returns empty if
// the round is not fully reported or is a draw.
func DetermineWinner(d *model.Duel) model.PlayerID {
	if !d.BothReported() {
		return ""
	}

	p1, p2 := d.Player1ID, d.Player2ID
	switch {
	case d.Player1FalseStart && d.Player2FalseStart:
		return ""
	case d.Player1FalseStart:
		return p2
	case d.Player2FalseStart:
		return p1
	}

	t1, t2 := *d.Player1ReactionTime, *d.Player2ReactionTime
	switch {
	case t1 < t2:
		return p1
	case t2 < t1:
		return p2
	case p1 < p2:
		return p1
	default:
		return p2
	}
}

// OutcomeFor describes a finished round for one participant
func OutcomeFor(d *model.Duel, me model.PlayerID) Outcome {
	if d == nil || d.Status != model.DuelStatusFinished || !d.HasPlayer(me) {
		return OutcomeNone
	}

	opponent := d.Opponent(me)
	switch {
	case d.WinnerID == "":
		return OutcomeDraw
	case d.WinnerID == me && d.FalseStarted(opponent):
		return OutcomeWonFalseStart
	case d.WinnerID == me:
		return OutcomeWon
	case d.FalseStarted(me):
		return OutcomeLostFalseStart
	default:
		return OutcomeLost
	}
}

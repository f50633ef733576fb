package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mcoot/neurodash/internal/api/response"
	"github.com/mcoot/neurodash/internal/services/duel"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Player:
		o.printPlayer(v)
	case response.AuthResponse:
		o.printAuthResult(v)
	case response.Duel:
		o.printDuel(v)
	case response.Health:
		o.printf("Status: %s\n", v.Status)
	case duel.State:
		o.printState(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, format, args...)
}

func (o *Output) printPlayer(p response.Player) {
	kind := "registered"
	switch {
	case p.IsBot:
		kind = "bot (" + p.BotStrategy + ")"
	case p.IsGuest:
		kind = "guest"
	}
	o.printf("Player: %s (%s)\n", p.DisplayName, p.ID)
	if p.Username != "" {
		o.printf("Username: %s\n", p.Username)
	}
	o.printf("Account: %s\n", kind)
	if p.ReactionSamples > 0 {
		o.printf("Average reaction: %d ms over %d rounds\n", p.AverageReactionTime, p.ReactionSamples)
	}
}

func (o *Output) printAuthResult(a response.AuthResponse) {
	o.printPlayer(a.Player)
	o.printf("Token: %s\n", a.SessionToken)
}

func (o *Output) printDuel(d response.Duel) {
	o.printf("Room: %s\n", d.RoomCode)
	o.printf("Status: %s (round %d)\n", d.Status, d.Round)
	o.printf("Player 1: %s%s\n", d.Player1ID, seatSummary(d.Player1Ready, d.Player1ReactionTime, d.Player1FalseStart))
	if d.Player2ID != "" {
		o.printf("Player 2: %s%s\n", d.Player2ID, seatSummary(d.Player2Ready, d.Player2ReactionTime, d.Player2FalseStart))
	} else {
		o.printf("Player 2: (open)\n")
	}
	if d.WinnerID != "" {
		o.printf("Winner: %s\n", d.WinnerID)
	}
}

func seatSummary(ready bool, ms *int64, falseStart bool) string {
	switch {
	case falseStart:
		return " - false start"
	case ms != nil:
		return fmt.Sprintf(" - %d ms", *ms)
	case ready:
		return " - ready"
	}
	return ""
}

func (o *Output) printState(s duel.State) {
	switch s.Phase {
	case duel.PhaseWaiting:
		if s.Game != nil {
			o.printf("Waiting for an opponent. Room code: %s\n", s.Game.RoomCode)
		}
	case duel.PhaseReady:
		o.printf("Opponent: %s. Press r then Enter when ready.\n", opponentName(s))
	case duel.PhaseCountdown:
		o.printf("Get ready... press Enter when you see GO\n")
	case duel.PhaseActive:
		o.printf("GO!\n")
	case duel.PhaseClicked:
		if s.FalseStart {
			o.printf("Too early! Waiting for %s...\n", opponentName(s))
		} else {
			o.printf("%d ms. Waiting for %s...\n", s.ReactionMs, opponentName(s))
		}
	case duel.PhaseResults:
		o.printResults(s)
	}
	if s.Err != nil {
		o.printf("Error: %s\n", s.Err)
	}
}

func (o *Output) printResults(s duel.State) {
	switch s.Outcome {
	case duel.OutcomeWon:
		o.printf("You win!")
	case duel.OutcomeLost:
		o.printf("You lose.")
	case duel.OutcomeDraw:
		o.printf("Draw.")
	case duel.OutcomeWonFalseStart:
		o.printf("You win, %s jumped the gun.", opponentName(s))
	case duel.OutcomeLostFalseStart:
		o.printf("You lose, false start.")
	case duel.OutcomeOpponentDisconnected:
		o.printf("%s disconnected.\n", opponentName(s))
		return
	}
	if s.Game != nil {
		o.printf(" %s\n", reactionLine(s))
	}
	o.printf("Press m then Enter for a rematch, q to quit.\n")
}

func reactionLine(s duel.State) string {
	me, opp := s.Game.ReactionTime(s.Me), s.Game.ReactionTime(s.Game.Opponent(s.Me))
	return fmt.Sprintf("(you: %s, %s: %s)", formatMs(me), opponentName(s), formatMs(opp))
}

func formatMs(ms *int64) string {
	if ms == nil {
		return "-"
	}
	return fmt.Sprintf("%d ms", *ms)
}

func opponentName(s duel.State) string {
	if s.Opponent != nil {
		return s.Opponent.DisplayName
	}
	return "opponent"
}

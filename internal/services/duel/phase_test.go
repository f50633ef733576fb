package duel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mcoot/neurodash/internal/model"
)

func TestDerivePhase(t *testing.T) {
	base := func(mut func(d *model.Duel)) *model.Duel {
		d := &model.Duel{Status: model.DuelStatusWaiting, Player1ID: "alice", Round: 1}
		mut(d)
		return d
	}

	tests := []struct {
		name  string
		duel  *model.Duel
		local LocalRound
		want  Phase
	}{
		{"no record", nil, LocalRound{}, PhaseWaiting},
		{"alone in room", base(func(d *model.Duel) {}), LocalRound{}, PhaseWaiting},
		{"seated but still waiting", base(func(d *model.Duel) { d.Player2ID = "bob" }), LocalRound{}, PhaseReady},
		{"ready", base(func(d *model.Duel) {
			d.Player2ID = "bob"
			d.Status = model.DuelStatusReady
			d.Player1Ready = true
		}), LocalRound{}, PhaseReady},
		{"started without go signal", base(func(d *model.Duel) {
			d.Player2ID = "bob"
			d.Status = model.DuelStatusStarted
		}), LocalRound{Round: 1, Scheduled: true}, PhaseCountdown},
		{"go signal fired", base(func(d *model.Duel) {
			d.Player2ID = "bob"
			d.Status = model.DuelStatusStarted
		}), LocalRound{Round: 1, Active: true}, PhaseActive},
		{"clicked locally before write lands", base(func(d *model.Duel) {
			d.Player2ID = "bob"
			d.Status = model.DuelStatusStarted
		}), LocalRound{Round: 1, Active: true, Clicked: true}, PhaseClicked},
		{"reported in record", base(func(d *model.Duel) {
			d.Player2ID = "bob"
			d.Status = model.DuelStatusStarted
			d.Player1ReactionTime = ms(250)
		}), LocalRound{}, PhaseClicked},
		{"opponent reported only", base(func(d *model.Duel) {
			d.Player2ID = "bob"
			d.Status = model.DuelStatusStarted
			d.Player2ReactionTime = ms(250)
		}), LocalRound{}, PhaseCountdown},
		{"local state from an earlier round is ignored", base(func(d *model.Duel) {
			d.Player2ID = "bob"
			d.Status = model.DuelStatusStarted
			d.Round = 2
		}), LocalRound{Round: 1, Active: true, Clicked: true}, PhaseCountdown},
		{"finished", base(func(d *model.Duel) {
			d.Player2ID = "bob"
			d.Status = model.DuelStatusFinished
		}), LocalRound{Round: 1, Clicked: true}, PhaseResults},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DerivePhase(tt.duel, "alice", tt.local))
		})
	}
}

// A client that only sees the final snapshot of each step must land on the
// same phase as one that applied every change in order
func TestDerivePhaseSnapshotMatchesIncremental(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	steps := []func(d *model.Duel){
		func(d *model.Duel) { d.Player2ID = "bob"; d.Status = model.DuelStatusReady },
		func(d *model.Duel) { d.Player1Ready = true },
		func(d *model.Duel) { d.Player2Ready = true },
		func(d *model.Duel) { d.Status = model.DuelStatusStarted; d.StartTimestamp = &at },
		func(d *model.Duel) { d.Player2ReactionTime = ms(310) },
		func(d *model.Duel) { d.Player1ReactionTime = ms(290) },
		func(d *model.Duel) { d.WinnerID = DetermineWinner(d); d.Status = model.DuelStatusFinished },
		func(d *model.Duel) { d.ResetRound(); d.Round++; d.Status = model.DuelStatusReady },
	}

	d := &model.Duel{Status: model.DuelStatusWaiting, Player1ID: "alice", Round: 1}
	incremental := LocalRound{Round: 1}
	for i, step := range steps {
		step(d)
		if incremental.Round != d.Round {
			incremental = LocalRound{Round: d.Round}
		}
		for _, me := range []model.PlayerID{"alice", "bob"} {
			assert.Equal(t, DerivePhase(d.Clone(), me, LocalRound{}), DerivePhase(d, me, incremental), "step %d for %s", i, me)
		}
	}
}

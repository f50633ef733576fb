package bot

import (
	"time"

	"github.com/mcoot/neurodash/internal/dependencies/random"
	"github.com/mcoot/neurodash/internal/model"
)

// StrategyRandom is the name of the default strategy
const StrategyRandom = "random"

// Strategy defines how a bot reacts
type Strategy interface {
	// ReactionDelay is how long after its go signal the bot clicks
	ReactionDelay(duel *model.Duel) time.Duration
}

// RandomStrategy reacts after a human-like delay drawn uniformly from a
// fixed window
type RandomStrategy struct {
	random   random.Random
	min, max time.Duration
}

// NewRandomStrategy creates a RandomStrategy reacting in [180ms, 450ms]
func NewRandomStrategy(rnd random.Random) *RandomStrategy {
	return &RandomStrategy{random: rnd, min: 180 * time.Millisecond, max: 450 * time.Millisecond}
}

// ReactionDelay returns a delay inside the strategy's window
func (s *RandomStrategy) ReactionDelay(duel *model.Duel) time.Duration {
	return random.Between(s.random, s.min, s.max)
}

// Package computer provides move policies for the computer opponent.
package computer

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/justinabrahms/deskchess/internal/chess"
)

// Difficulty tiers offered by the settings menu.
const (
	Easy   = 1
	Medium = 2
	Hard   = 3
)

// ClampDifficulty keeps level within the offered tiers.
func ClampDifficulty(level int) int {
	switch {
	case level < Easy:
		return Easy
	case level > Hard:
		return Hard
	default:
		return level
	}
}

// RandomPolicy picks uniformly among the legal moves. Difficulty is accepted
// but has no effect.
type RandomPolicy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPolicy seeds from the clock.
func NewRandomPolicy() *RandomPolicy {
	return NewSeededPolicy(time.Now().UnixNano())
}

// NewSeededPolicy gives a reproducible sequence of choices.
func NewSeededPolicy(seed int64) *RandomPolicy {
	return &RandomPolicy{rng: rand.New(rand.NewSource(seed))}
}

func (p *RandomPolicy) SelectMove(ctx context.Context, moves []chess.Candidate, difficulty int) (chess.Candidate, bool) {
	if len(moves) == 0 || ctx.Err() != nil {
		return chess.Candidate{}, false
	}
	p.mu.Lock()
	i := p.rng.Intn(len(moves))
	p.mu.Unlock()
	return moves[i], true
}

// FirstPolicy always plays the first legal move. Useful where a
// deterministic opponent is wanted.
type FirstPolicy struct{}

func (FirstPolicy) SelectMove(ctx context.Context, moves []chess.Candidate, difficulty int) (chess.Candidate, bool) {
	if len(moves) == 0 {
		return chess.Candidate{}, false
	}
	return moves[0], true
}

var (
	_ chess.MovePolicy = (*RandomPolicy)(nil)
	_ chess.MovePolicy = FirstPolicy{}
)

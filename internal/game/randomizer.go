package game

import (
	"math/rand/v2"
	"sync"
)

// Randomizer is the weighted card picker. It never touches the bank.
type Randomizer interface {
	DrawCard() (Vibe, Level)
	// Chance reports true with probability percent/100.
	Chance(percent int) bool
}

// MathRandomizer draws from math/rand/v2. Cards are flavor, not value, so a
// non-cryptographic source is enough here.
type MathRandomizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomizer returns a randomizer seeded from the runtime source.
func NewRandomizer() *MathRandomizer {
	return &MathRandomizer{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeededRandomizer returns a reproducible randomizer.
func NewSeededRandomizer(seed1, seed2 uint64) *MathRandomizer {
	return &MathRandomizer{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

func (m *MathRandomizer) DrawCard() (Vibe, Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vibe := Vibes[m.rng.IntN(len(Vibes))]
	return vibe, LevelForRoll(m.rng.IntN(100) + 1)
}

func (m *MathRandomizer) Chance(percent int) bool {
	if percent <= 0 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.IntN(100)+1 <= percent
}

// AnyPulse rolls trials independent pulses and reports whether any hit.
func AnyPulse(r Randomizer, trials, percent int) bool {
	for i := 0; i < trials; i++ {
		if r.Chance(percent) {
			return true
		}
	}
	return false
}

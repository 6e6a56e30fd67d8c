package tower

import (
	"math/rand/v2"
	"time"
)

// PRNG is a seedable Source. A zero seed picks the current time.
type PRNG struct {
	rng *rand.Rand
}

func NewPRNG(seed uint64) *PRNG {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &PRNG{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (p *PRNG) Float64() float64 { return p.rng.Float64() }

// Script replays fixed draws in order and then repeats the last one. Tests use it.
type Script struct {
	draws []float64
	next  int
}

func NewScript(draws ...float64) *Script { return &Script{draws: draws} }

func (s *Script) Float64() float64 {
	if len(s.draws) == 0 {
		return 0
	}
	if s.next >= len(s.draws) {
		return s.draws[len(s.draws)-1]
	}
	v := s.draws[s.next]
	s.next++
	return v
}

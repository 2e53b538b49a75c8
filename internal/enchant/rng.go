package enchant

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// RandomSource yields uniform floats in [0, 1).
// Implementations need not be safe for concurrent use; callers serialize draws.
type RandomSource interface {
	Float64() float64
}

// crypto random: default generation method
type cryptoRNG struct{}

func (cryptoRNG) Float64() float64 {
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err != nil {
		// back to math/rand/v2
		return rand.Float64()
	}
	// top 53 bits => [0, 1)
	u := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(u) / (1 << 53)
}

func DefaultRNG() RandomSource { return cryptoRNG{} }

// Replicable RNG (tests, Monte Carlo, replays)
type seededRNG struct{ r *rand.Rand }

func NewSeededRNG(seed uint64) RandomSource {
	return &seededRNG{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *seededRNG) Float64() float64 { return s.r.Float64() }

// fixedRNG replays a fixed sequence, repeating the last value once exhausted.
type fixedRNG struct {
	vals []float64
	pos  int
}

// NewFixedRNG returns a source that yields vals in order. It exists for tests
// and for replaying a recorded sequence of rolls.
func NewFixedRNG(vals ...float64) RandomSource {
	return &fixedRNG{vals: vals}
}

func (f *fixedRNG) Float64() float64 {
	if len(f.vals) == 0 {
		return 0
	}
	if f.pos >= len(f.vals) {
		return f.vals[len(f.vals)-1]
	}
	v := f.vals[f.pos]
	f.pos++
	return v
}

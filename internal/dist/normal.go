// Package dist provides the random-variate source the simulation draws from.
// Every stochastic input — belief seeds, production costs, supply ranges —
// comes through here, so a seeded source makes a run reproducible.
package dist

import (
	"math"
	"math/rand/v2"
	"sync"
)

// Source is a shared uniform random source. Safe for concurrent use.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource creates a source seeded from seed. The same seed yields the
// same draw sequence for a single consumer; concurrent consumers interleave.
func NewSource(seed uint64) *Source {
	return &Source{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float64 returns a uniform draw in [0, 1).
func (s *Source) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Uniform returns a uniform draw in [lower, upper).
func (s *Source) Uniform(lower, upper float64) float64 {
	if upper <= lower {
		return lower
	}
	return lower + s.Float64()*(upper-lower)
}

// Bool returns true with probability p.
func (s *Source) Bool(p float64) bool {
	return s.Float64() < p
}

// IntN returns a uniform draw in [0, n).
func (s *Source) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// Perm returns a random permutation of [0, n).
func (s *Source) Perm(n int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Perm(n)
}

// NormFloat64 returns a standard normal draw.
func (s *Source) NormFloat64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.NormFloat64()
}

// Normal is a parameterized normal distribution tied to a product attribute.
// Samples are floored at zero: the model has no negative prices, costs, or
// elasticities.
type Normal struct {
	ID     uint64  `toml:"id" json:"id"`
	Name   string  `toml:"name" json:"name"`
	Mean   float64 `toml:"mean" json:"mean"`
	StdDev float64 `toml:"std_dev" json:"std_dev"`
}

// NewNormal creates a distribution with the given parameters.
func NewNormal(id uint64, name string, mean, stdDev float64) Normal {
	return Normal{ID: id, Name: name, Mean: mean, StdDev: stdDev}
}

// Sample returns one draw, clamped to be non-negative.
func (n Normal) Sample(src *Source) float64 {
	return math.Max(src.NormFloat64()*n.StdDev+n.Mean, 0)
}

// SampleIn returns a draw inside [lower, upper] by rejection, clamped
// non-negative like Sample. Falls back to the nearest bound if the
// distribution barely overlaps the interval.
func (n Normal) SampleIn(src *Source, lower, upper float64) float64 {
	const maxAttempts = 1000
	for i := 0; i < maxAttempts; i++ {
		v := n.Sample(src)
		if v >= lower && v <= upper {
			return v
		}
	}
	return math.Min(math.Max(n.Mean, lower), upper)
}

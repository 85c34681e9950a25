// Package rngx centralizes the deterministic-RNG story shared by
// internal/policy, internal/driver and internal/runner: each iteration constructs its
// own source seeded by seed XOR iteration index, and the weighted-draw
// machinery behind the sampler's exploitation regime is expressed with
// gonum's categorical distribution.
package rngx

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/stat/distuv"
)

// Source wraps a seeded RNG. A nil *Source (no seed supplied) falls back
// to a process-global, non-deterministic source.
type Source struct {
	src rand.Source
}

// New returns a deterministic Source seeded by seed XOR iteration.
func New(seed uint64, iteration int) *Source {
	return &Source{src: rand.NewSource(seed ^ uint64(iteration))}
}

// NewFromSeed returns a deterministic Source seeded directly, with no
// iteration mixed in. Nothing in the module calls it; the engine's
// stagnation randomization draws from the iteration's own Source.
func NewFromSeed(seed uint64) *Source {
	return &Source{src: rand.NewSource(seed)}
}

// Float64 returns a uniform draw in [0,1). A nil Source uses the process
// global, non-deterministic generator.
func (s *Source) Float64() float64 {
	if s == nil {
		return rand.Float64()
	}
	return rand.New(s.src).Float64()
}

// Intn returns a uniform draw in [0,n).
func (s *Source) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	if s == nil {
		return rand.Intn(n)
	}
	return rand.New(s.src).Intn(n)
}

// WeightedIndex draws an index into weights proportional to its value,
// using gonum's categorical distribution. weights must be non-negative and
// sum to a positive value; callers are responsible for that precondition
// (PolicySampler falls back before ever calling this with degenerate
// input).
func (s *Source) WeightedIndex(weights []float64) int {
	var src rand.Source
	if s == nil {
		src = rand.NewSource(uint64(rand.Int63()))
	} else {
		src = s.src
	}
	cat := distuv.NewCategorical(weights, src)
	return int(cat.Rand())
}

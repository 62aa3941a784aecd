// Package randsrc holds the random sources injected into the simulation.
//
// All randomness in a run flows through a single Source so a seeded
// source makes the whole run reproducible.
package randsrc

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

type Source interface {
	// Float64 returns a uniform draw in [0,1).
	Float64() float64
	// IntRange returns a uniform integer in [lo,hi], inclusive.
	IntRange(lo, hi int) int
	// Sample returns k distinct indices drawn uniformly from [0,n).
	Sample(n, k int) []int
}

// PCG is a seeded Source backed by math/rand/v2's PCG generator.
type PCG struct {
	seed int64
	r    *rand.Rand
}

func NewPCG(seed int64) *PCG {
	s := uint64(seed)
	return &PCG{
		seed: seed,
		r:    rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15)),
	}
}

func (p *PCG) Seed() int64 { return p.seed }

func (p *PCG) Float64() float64 { return p.r.Float64() }

func (p *PCG) IntRange(lo, hi int) int {
	if hi < lo {
		panic(fmt.Sprintf("randsrc: empty range [%d,%d]", lo, hi))
	}
	return lo + p.r.IntN(hi-lo+1)
}

// Sample uses Floyd's algorithm, so it costs O(k) regardless of n.
func (p *PCG) Sample(n, k int) []int {
	if k < 0 || k > n {
		panic(fmt.Sprintf("randsrc: cannot sample %d of %d", k, n))
	}
	out := make([]int, 0, k)
	seen := make(map[int]struct{}, k)
	for j := n - k; j < n; j++ {
		t := p.r.IntN(j + 1)
		if _, ok := seen[t]; ok {
			t = j
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// NewSeed generates a fresh seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

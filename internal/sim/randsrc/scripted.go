package randsrc

import "fmt"

// Scripted replays fixed draws in order. It panics when a queue runs dry
// or a queued sample does not fit the request, which makes it useful for
// pinning exact draw sequences in tests.
type Scripted struct {
	Floats  []float64
	Ints    []int
	Samples [][]int
}

func (s *Scripted) Float64() float64 {
	if len(s.Floats) == 0 {
		panic("randsrc: scripted floats exhausted")
	}
	v := s.Floats[0]
	s.Floats = s.Floats[1:]
	return v
}

func (s *Scripted) IntRange(lo, hi int) int {
	if len(s.Ints) == 0 {
		panic("randsrc: scripted ints exhausted")
	}
	v := s.Ints[0]
	s.Ints = s.Ints[1:]
	if v < lo || v > hi {
		panic(fmt.Sprintf("randsrc: scripted int %d outside [%d,%d]", v, lo, hi))
	}
	return v
}

func (s *Scripted) Sample(n, k int) []int {
	if len(s.Samples) == 0 {
		panic("randsrc: scripted samples exhausted")
	}
	v := s.Samples[0]
	s.Samples = s.Samples[1:]
	if len(v) != k {
		panic(fmt.Sprintf("randsrc: scripted sample has %d indices, want %d", len(v), k))
	}
	for _, idx := range v {
		if idx < 0 || idx >= n {
			panic(fmt.Sprintf("randsrc: scripted index %d outside [0,%d)", idx, n))
		}
	}
	return v
}

// Drained reports whether every scripted draw was consumed.
func (s *Scripted) Drained() bool {
	return len(s.Floats) == 0 && len(s.Ints) == 0 && len(s.Samples) == 0
}

package epidemic

import (
	"fmt"

	"seirsim.dev/internal/sim/randsrc"
)

// NewPopulation builds n agents, vaccinating each with probability vp,
// then seeds infections into i distinct agents chosen uniformly. Seeding
// ignores vaccination status.
func NewPopulation(src randsrc.Source, n, i int, vp float64, de, di int) (Population, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: population %d must be positive", ErrInvalidConfig, n)
	}
	if i < 0 || i > n {
		return nil, fmt.Errorf("%w: cannot seed %d infections into %d agents", ErrInvalidConfig, i, n)
	}
	pop := make(Population, n)
	for k := range pop {
		pop[k] = Agent{State: StateSusceptible, Vaccinated: Flip(src, vp)}
	}
	seed := SeedState(de, di)
	for _, k := range src.Sample(n, i) {
		pop[k].State = seed
	}
	return pop, nil
}

package epidemic

import "seirsim.dev/internal/sim/randsrc"

// Infection records one transmission event.
type Infection struct {
	Day   int `json:"day"`
	Agent int `json:"agent"`
	By    int `json:"by"`
}

type spreadParams struct {
	day          int
	maxContacts  int
	transmission Transmission
	de, di       int
}

// spread runs one day's contact phase. Agents are visited in index order
// and targets are overwritten in place, so an agent infected earlier in
// the pass cannot be infected again by a later one, and a freshly
// infected agent does not spread until after the next Update.
func spread(pop Population, src randsrc.Source, p spreadParams, onInfect func(Infection)) int {
	n := len(pop)
	seed := SeedState(p.de, p.di)
	infections := 0
	for i := 0; i < n; i++ {
		if !IsInfectious(pop[i], p.de, p.di) {
			continue
		}
		prob := p.transmission.For(CategoryOf(pop[i], p.di))
		k := src.IntRange(0, p.maxContacts)
		if k > n {
			k = n
		}
		for _, j := range src.Sample(n, k) {
			if !IsSusceptible(pop[j]) || !Flip(src, prob) {
				continue
			}
			infections++
			pop[j].State = seed
			if onInfect != nil {
				onInfect(Infection{Day: p.day, Agent: j, By: i})
			}
		}
	}
	return infections
}

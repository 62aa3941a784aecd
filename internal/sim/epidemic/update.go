package epidemic

import "seirsim.dev/internal/sim/randsrc"

// Update advances every agent's clock by one day and returns how many
// agents were still infectious past today (prior State > 1).
//
// An agent on its last infectious day recovers with probability rp and
// otherwise becomes susceptible again.
func Update(pop Population, src randsrc.Source, rp float64) int {
	active := 0
	for k := range pop {
		switch s := pop[k].State; {
		case s == 1:
			if Flip(src, 1-rp) {
				pop[k].State = StateSusceptible
			} else {
				pop[k].State = StateRecovered
			}
		case s > 1:
			pop[k].State = s - 1
			active++
		}
	}
	return active
}

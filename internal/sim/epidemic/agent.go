package epidemic

const (
	StateSusceptible = -1
	StateRecovered   = 0
)

// Agent is one simulated individual. Vaccinated is fixed at creation;
// only State changes over a run.
//
// State encodes the disease clock:
//
//	-1              susceptible (or vaccinated and never seeded)
//	0               recovered
//	1..di           infected
//	di+1..di+de     exposed
//	di+de+1         freshly infected, decremented by the next Update
type Agent struct {
	State      int  `json:"state"`
	Vaccinated bool `json:"vaccinated"`
}

type Population []Agent

// SeedState is the value written on every infection event.
func SeedState(de, di int) int { return di + de + 1 }

func IsSusceptible(a Agent) bool { return !a.Vaccinated && a.State == StateSusceptible }

func IsExposed(a Agent, de, di int) bool { return di < a.State && a.State <= di+de }

func IsInfected(a Agent, di int) bool { return 0 < a.State && a.State <= di }

func IsInfectious(a Agent, de, di int) bool { return IsExposed(a, de, di) || IsInfected(a, di) }

func IsRecovered(a Agent) bool { return a.State == StateRecovered }

// Category selects which transmission probability an infectious agent uses.
type Category int

const (
	CategoryExposed Category = iota
	CategoryInfected
)

func (c Category) String() string {
	switch c {
	case CategoryExposed:
		return "exposed"
	case CategoryInfected:
		return "infected"
	default:
		return "unknown"
	}
}

func CategoryOf(a Agent, di int) Category {
	if IsInfected(a, di) {
		return CategoryInfected
	}
	return CategoryExposed
}

// Transmission holds the per-contact infection probability for each category.
type Transmission struct {
	Exposed  float64 `json:"exposed"`
	Infected float64 `json:"infected"`
}

func (t Transmission) For(c Category) float64 {
	if c == CategoryInfected {
		return t.Infected
	}
	return t.Exposed
}

// Census is a point-in-time count of the population by classification.
// Protected counts vaccinated agents currently at state -1, which includes
// vaccinated agents that were seeded and later returned to -1. Fresh
// infections (State == di+de+1) are counted as exposed.
type Census struct {
	Susceptible int `json:"susceptible"`
	Protected   int `json:"protected"`
	Exposed     int `json:"exposed"`
	Infected    int `json:"infected"`
	Recovered   int `json:"recovered"`
}

func TakeCensus(pop Population, de, di int) Census {
	var c Census
	for _, a := range pop {
		switch {
		case IsSusceptible(a):
			c.Susceptible++
		case a.State == StateSusceptible:
			c.Protected++
		case IsRecovered(a):
			c.Recovered++
		case IsInfected(a, di):
			c.Infected++
		default:
			c.Exposed++
		}
	}
	return c
}

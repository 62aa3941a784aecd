package epidemic

import (
	"fmt"

	"seirsim.dev/internal/sim/randsrc"
)

type Outcome int

const (
	Extinguished Outcome = iota + 1
	Persisting
)

func (o Outcome) String() string {
	switch o {
	case Extinguished:
		return "extinguished"
	case Persisting:
		return "persisting"
	default:
		return "running"
	}
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Outcome) UnmarshalText(b []byte) error {
	switch string(b) {
	case "extinguished":
		*o = Extinguished
	case "persisting":
		*o = Persisting
	default:
		return fmt.Errorf("unknown outcome %q", b)
	}
	return nil
}

type Result struct {
	Curve           []int   `json:"curve"`
	Days            int     `json:"days"`
	Rounds          int     `json:"rounds"`
	TotalInfections int     `json:"total_infections"`
	AttackRate      float64 `json:"attack_rate"`
	Outcome         Outcome `json:"outcome"`
}

func (r Result) Summary() string {
	lead := "Pandemic persists"
	if r.Outcome == Extinguished {
		lead = "Pandemic extinguished"
	}
	return fmt.Sprintf("%s: %d days, %d infecteds, attack rate is %.1f%%.", lead, r.Days, r.TotalInfections, r.AttackRate)
}

// Simulator owns one run's population. It is not safe for concurrent use.
type Simulator struct {
	cfg Config
	src randsrc.Source
	obs Observer

	pop    Population
	total  int
	curve  []int
	rounds int
	result *Result
}

// New validates cfg and builds the initial population. obs may be nil.
func New(cfg Config, src randsrc.Source, obs Observer) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if obs == nil {
		obs = NopObserver{}
	}
	pop, err := NewPopulation(src, cfg.Population, cfg.Initial, cfg.VaccinationProb, cfg.ExposedDays, cfg.InfectedDays)
	if err != nil {
		return nil, err
	}
	s := &Simulator{
		cfg:   cfg,
		src:   src,
		obs:   obs,
		pop:   pop,
		total: cfg.Initial,
		curve: []int{cfg.Initial},
	}
	return s, nil
}

func (s *Simulator) Config() Config { return s.cfg }

// Population exposes the live agents.
func (s *Simulator) Population() Population { return s.pop }

func (s *Simulator) report(day, active int) DayReport {
	return DayReport{
		Day:        day,
		Active:     active,
		Total:      s.total,
		Census:     TakeCensus(s.pop, s.cfg.ExposedDays, s.cfg.InfectedDays),
		Population: s.pop,
	}
}

// Run steps days until no agent is infectious or MaxRounds is reached.
// A finished simulation is terminal: later calls return the same result
// without stepping or notifying the observer.
func (s *Simulator) Run() Result {
	if s.result != nil {
		return *s.result
	}
	s.obs.DayEnded(s.report(0, s.cfg.Initial))

	params := spreadParams{
		maxContacts:  s.cfg.MaxContacts,
		transmission: s.cfg.Transmission,
		de:           s.cfg.ExposedDays,
		di:           s.cfg.InfectedDays,
	}
	outcome := Persisting
	for s.rounds < s.cfg.MaxRounds {
		active := Update(s.pop, s.src, s.cfg.RecoveryProb)
		s.curve = append(s.curve, active)
		day := len(s.curve) - 1
		s.obs.DayStarted(s.report(day, active))

		if active == 0 {
			s.obs.DayEnded(s.report(day, active))
			outcome = Extinguished
			break
		}

		params.day = day
		s.total += spread(s.pop, s.src, params, s.obs.Infected)
		s.obs.DayEnded(s.report(day, active))
		s.rounds++
	}

	res := Result{
		Curve:           s.curve,
		Days:            len(s.curve),
		Rounds:          s.rounds,
		TotalInfections: s.total,
		AttackRate:      100 * float64(s.total) / float64(s.cfg.Population),
		Outcome:         outcome,
	}
	s.result = &res
	s.obs.Finished(res)
	return res
}

// Sim runs one simulation and returns its epidemic curve.
func Sim(cfg Config, src randsrc.Source) ([]int, error) {
	s, err := New(cfg, src, nil)
	if err != nil {
		return nil, err
	}
	return s.Run().Curve, nil
}

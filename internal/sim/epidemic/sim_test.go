package epidemic

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"seirsim.dev/internal/sim/randsrc"
)

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"zero population", func(c *Config) { c.Population = 0 }, "population must be > 0"},
		{"negative initial", func(c *Config) { c.Initial = -1 }, "initial infections must be >= 0"},
		{"initial exceeds population", func(c *Config) { c.Initial = 101 }, "exceed population"},
		{"negative contacts", func(c *Config) { c.MaxContacts = -1 }, "max contacts"},
		{"vaccination above one", func(c *Config) { c.VaccinationProb = 1.5 }, "vaccination probability"},
		{"recovery below zero", func(c *Config) { c.RecoveryProb = -0.1 }, "recovery probability"},
		{"exposed tp", func(c *Config) { c.Transmission.Exposed = 2 }, "exposed transmission"},
		{"infected tp", func(c *Config) { c.Transmission.Infected = -1 }, "infected transmission"},
		{"negative exposed days", func(c *Config) { c.ExposedDays = -1 }, "exposed days"},
		{"zero infected days", func(c *Config) { c.InfectedDays = 0 }, "infected days"},
		{"zero rounds", func(c *Config) { c.MaxRounds = 0 }, "max rounds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("error should match ErrInvalidConfig: %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestConfigValidate_ReportsAllViolations(t *testing.T) {
	cfg := Defaults()
	cfg.Population = -5
	cfg.InfectedDays = 0
	cfg.MaxRounds = -1
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"population", "infected days", "max rounds"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Initial = 1000
	if _, err := New(cfg, randsrc.NewPCG(1), nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestRun_TwoAgentsNoContacts(t *testing.T) {
	cfg := Config{
		Population:   2,
		Initial:      1,
		MaxContacts:  0,
		ExposedDays:  0,
		InfectedDays: 1,
		RecoveryProb: 1,
		Transmission: Transmission{Exposed: 0.01, Infected: 0.02},
		MaxRounds:    100,
	}
	src := &randsrc.Scripted{
		// Two vaccination flips, then the recovery flip on day 2.
		Floats:  []float64{0.5, 0.5, 0.5},
		Ints:    []int{0},
		Samples: [][]int{{0}, {}},
	}
	s, err := New(cfg, src, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := s.Population()[0].State; got != 2 {
		t.Fatalf("seed state: got %d want 2", got)
	}
	res := s.Run()
	if !reflect.DeepEqual(res.Curve, []int{1, 1, 0}) {
		t.Fatalf("curve: got %v", res.Curve)
	}
	if res.Outcome != Extinguished || res.Days != 3 || res.TotalInfections != 1 || res.AttackRate != 50 {
		t.Fatalf("result: got %+v", res)
	}
	if want := "Pandemic extinguished: 3 days, 1 infecteds, attack rate is 50.0%."; res.Summary() != want {
		t.Fatalf("summary: got %q", res.Summary())
	}
	if !IsRecovered(s.Population()[0]) {
		t.Fatalf("agent 0 should be recovered, got %+v", s.Population()[0])
	}
	if !src.Drained() {
		t.Fatalf("unexpected leftover draws: %+v", src)
	}
}

func TestRun_SingleAgentNeverSpreads(t *testing.T) {
	for seed := int64(1); seed <= 50; seed++ {
		cfg := Defaults()
		cfg.Population = 1
		cfg.Initial = 1
		cfg.MaxContacts = 10
		cfg.Transmission = Transmission{Exposed: 1, Infected: 1}
		cfg.RecoveryProb = 0
		s, err := New(cfg, randsrc.NewPCG(seed), nil)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		if res := s.Run(); res.TotalInfections != 1 {
			t.Fatalf("seed %d: total infections %d", seed, res.TotalInfections)
		}
	}
}

func TestRun_ZeroTransmissionDecaysToZero(t *testing.T) {
	cfg := Defaults()
	cfg.Population = 200
	cfg.Initial = 10
	cfg.MaxContacts = 50
	cfg.Transmission = Transmission{}
	res, err := run(t, cfg, 9, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.TotalInfections != cfg.Initial {
		t.Fatalf("total: got %d want %d", res.TotalInfections, cfg.Initial)
	}
	// The seeded cohort stays active for de+di updates, then the next
	// update reports zero.
	want := []int{10}
	for d := 0; d < cfg.ExposedDays+cfg.InfectedDays; d++ {
		want = append(want, 10)
	}
	want = append(want, 0)
	if !reflect.DeepEqual(res.Curve, want) {
		t.Fatalf("curve: got %v want %v", res.Curve, want)
	}
	for i := 1; i < len(res.Curve); i++ {
		if res.Curve[i] > res.Curve[i-1] {
			t.Fatalf("curve increased at day %d: %v", i, res.Curve)
		}
	}
	if res.Outcome != Extinguished {
		t.Fatalf("outcome: got %v", res.Outcome)
	}
}

func TestRun_FullyVaccinatedNoNewInfections(t *testing.T) {
	cfg := Defaults()
	cfg.VaccinationProb = 1
	cfg.Initial = 5
	cfg.MaxContacts = 100
	cfg.Transmission = Transmission{Exposed: 1, Infected: 1}
	for seed := int64(1); seed <= 20; seed++ {
		res, err := run(t, cfg, seed, nil)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if res.TotalInfections != cfg.Initial {
			t.Fatalf("seed %d: total %d", seed, res.TotalInfections)
		}
	}
}

type invariantObserver struct {
	NopObserver
	t         *testing.T
	de, di    int
	lastTotal int
	vacc      []bool
	prev      []int
	starts    int
}

func (o *invariantObserver) DayStarted(d DayReport) { o.starts++ }

func (o *invariantObserver) Infected(ev Infection) {
	if o.vacc[ev.Agent] {
		o.t.Fatalf("vaccinated agent %d infected on day %d", ev.Agent, ev.Day)
	}
}

func (o *invariantObserver) DayEnded(d DayReport) {
	if o.vacc == nil {
		o.vacc = make([]bool, len(d.Population))
		for i, a := range d.Population {
			o.vacc[i] = a.Vaccinated
		}
	}
	seed := SeedState(o.de, o.di)
	for i, a := range d.Population {
		if a.State < -1 || a.State > o.di+o.de+1 {
			o.t.Fatalf("day %d agent %d: state %d out of range", d.Day, i, a.State)
		}
		if a.Vaccinated != o.vacc[i] {
			o.t.Fatalf("day %d agent %d: vaccination changed", d.Day, i)
		}
		if o.prev != nil {
			if p := o.prev[i]; a.State != p && a.State >= p && a.State != seed {
				o.t.Fatalf("day %d agent %d: state rose %d -> %d without infection", d.Day, i, p, a.State)
			}
		}
	}
	if o.prev == nil {
		o.prev = make([]int, len(d.Population))
	}
	for i, a := range d.Population {
		o.prev[i] = a.State
	}
	if d.Total < o.lastTotal {
		o.t.Fatalf("day %d: total decreased %d -> %d", d.Day, o.lastTotal, d.Total)
	}
	o.lastTotal = d.Total
}

func TestRun_Invariants(t *testing.T) {
	for seed := int64(1); seed <= 30; seed++ {
		cfg := Defaults()
		cfg.Population = 300
		cfg.Initial = 3
		cfg.MaxContacts = 8
		cfg.VaccinationProb = 0.3
		cfg.Transmission = Transmission{Exposed: 0.1, Infected: 0.2}
		cfg.RecoveryProb = 1
		cfg.MaxRounds = 60

		obs := &invariantObserver{t: t, de: cfg.ExposedDays, di: cfg.InfectedDays}
		res, err := run(t, cfg, seed, obs)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if res.Curve[0] != cfg.Initial {
			t.Fatalf("curve[0]: got %d", res.Curve[0])
		}
		if updates := len(res.Curve) - 1; updates > cfg.MaxRounds || updates != obs.starts {
			t.Fatalf("updates %d, observed %d, max %d", updates, obs.starts, cfg.MaxRounds)
		}
		for i, v := range res.Curve[:len(res.Curve)-1] {
			if v == 0 && i > 0 {
				t.Fatalf("simulation continued after extinction: %v", res.Curve)
			}
		}
		if res.Outcome == Extinguished && res.Curve[len(res.Curve)-1] != 0 {
			t.Fatalf("extinguished run must end at zero: %v", res.Curve)
		}
		if res.Outcome == Persisting && res.Rounds != cfg.MaxRounds {
			t.Fatalf("persisting run rounds: got %d", res.Rounds)
		}
		lo := 100 * float64(cfg.Initial) / float64(cfg.Population)
		if res.AttackRate < lo || res.AttackRate > 100 {
			t.Fatalf("attack rate %v outside [%v,100]", res.AttackRate, lo)
		}
	}
}

func TestRun_PersistsUntilMaxRounds(t *testing.T) {
	cfg := Defaults()
	cfg.Population = 1
	cfg.InfectedDays = 50
	cfg.MaxRounds = 5
	res, err := run(t, cfg, 1, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Outcome != Persisting || len(res.Curve) != 6 || res.Rounds != 5 {
		t.Fatalf("result: %+v", res)
	}
	if !strings.HasPrefix(res.Summary(), "Pandemic persists: 6 days") {
		t.Fatalf("summary: %q", res.Summary())
	}
}

func TestRun_Deterministic(t *testing.T) {
	cfg := Defaults()
	cfg.Population = 500
	cfg.Initial = 5
	cfg.Transmission = Transmission{Exposed: 0.05, Infected: 0.1}
	a, err := Sim(cfg, randsrc.NewPCG(2024))
	if err != nil {
		t.Fatalf("sim a: %v", err)
	}
	b, err := Sim(cfg, randsrc.NewPCG(2024))
	if err != nil {
		t.Fatalf("sim b: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("curves differ:\n%v\n%v", a, b)
	}
}

func TestTextObserver(t *testing.T) {
	var sb strings.Builder
	obs := TextObserver{W: &sb}
	obs.DayStarted(DayReport{Day: 3, Active: 2, Population: make(Population, 10)})
	obs.Infected(Infection{Day: 3, Agent: 7, By: 1})
	want := "Day 3: 2 of 10 agents infected.\n  Agent 7 infected by agent 1.\n"
	if sb.String() != want {
		t.Fatalf("got %q want %q", sb.String(), want)
	}
}

func run(t *testing.T, cfg Config, seed int64, obs Observer) (Result, error) {
	t.Helper()
	s, err := New(cfg, randsrc.NewPCG(seed), obs)
	if err != nil {
		return Result{}, err
	}
	return s.Run(), nil
}

func TestRun_SecondCallReturnsFinishedResult(t *testing.T) {
	cfg := Defaults()
	cfg.Transmission = Transmission{}
	obs := &invariantObserver{t: t, de: cfg.ExposedDays, di: cfg.InfectedDays}
	s, err := New(cfg, randsrc.NewPCG(4), obs)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	first := s.Run()
	starts := obs.starts
	second := s.Run()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("second run changed result:\n%+v\n%+v", first, second)
	}
	if obs.starts != starts {
		t.Fatalf("second run stepped %d more days", obs.starts-starts)
	}
	if first.Outcome != Extinguished || second.Curve[len(second.Curve)-1] != 0 || second.Curve[len(second.Curve)-2] == 0 {
		t.Fatalf("extinction must be terminal: %v", second.Curve)
	}
}

func TestRun_InvariantsWithReinfection(t *testing.T) {
	// rp < 1 lets agents drop from 1 back to -1 and be infected again,
	// which exercises the seed jump more than once per agent.
	for seed := int64(1); seed <= 10; seed++ {
		cfg := Defaults()
		cfg.Population = 150
		cfg.Initial = 5
		cfg.MaxContacts = 10
		cfg.VaccinationProb = 0.2
		cfg.Transmission = Transmission{Exposed: 0.2, Infected: 0.3}
		cfg.RecoveryProb = 0.3
		cfg.MaxRounds = 40
		obs := &invariantObserver{t: t, de: cfg.ExposedDays, di: cfg.InfectedDays}
		if _, err := run(t, cfg, seed, obs); err != nil {
			t.Fatalf("run: %v", err)
		}
	}
}

package epidemic

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("epidemic: invalid config")

type Config struct {
	Population      int          `json:"population"`
	Initial         int          `json:"initial"`
	MaxContacts     int          `json:"max_contacts"`
	VaccinationProb float64      `json:"vaccination_prob"`
	Transmission    Transmission `json:"transmission"`
	ExposedDays     int          `json:"exposed_days"`
	InfectedDays    int          `json:"infected_days"`
	RecoveryProb    float64      `json:"recovery_prob"`
	MaxRounds       int          `json:"max_rounds"`

	// Verbose asks the caller to attach a text observer; the engine itself
	// never prints.
	Verbose bool `json:"verbose,omitempty"`
}

func Defaults() Config {
	return Config{
		Population:      100,
		Initial:         1,
		MaxContacts:     5,
		VaccinationProb: 0,
		Transmission:    Transmission{Exposed: 0.01, Infected: 0.02},
		ExposedDays:     3,
		InfectedDays:    5,
		RecoveryProb:    0.5,
		MaxRounds:       100,
	}
}

// Validate reports every violated bound at once. The returned error
// matches ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}
	if c.Population <= 0 {
		bad("population must be > 0, got %d", c.Population)
	}
	if c.Initial < 0 {
		bad("initial infections must be >= 0, got %d", c.Initial)
	} else if c.Initial > c.Population && c.Population > 0 {
		bad("initial infections %d exceed population %d", c.Initial, c.Population)
	}
	if c.MaxContacts < 0 {
		bad("max contacts must be >= 0, got %d", c.MaxContacts)
	}
	checkProb := func(name string, p float64) {
		if !(p >= 0 && p <= 1) {
			bad("%s must be in [0,1], got %v", name, p)
		}
	}
	checkProb("vaccination probability", c.VaccinationProb)
	checkProb("recovery probability", c.RecoveryProb)
	checkProb("exposed transmission probability", c.Transmission.Exposed)
	checkProb("infected transmission probability", c.Transmission.Infected)
	if c.ExposedDays < 0 {
		bad("exposed days must be >= 0, got %d", c.ExposedDays)
	}
	if c.InfectedDays < 1 {
		bad("infected days must be >= 1, got %d", c.InfectedDays)
	}
	if c.MaxRounds <= 0 {
		bad("max rounds must be > 0, got %d", c.MaxRounds)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

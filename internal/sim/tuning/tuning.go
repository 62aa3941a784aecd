package tuning

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"seirsim.dev/internal/sim/epidemic"
)

// Tuning is a scenario file. Every field is optional; unset fields keep
// whatever the caller's config already holds.
type Tuning struct {
	Name string `yaml:"name" json:"name,omitempty"`
	Seed *int64 `yaml:"seed" json:"seed,omitempty"`

	Population      *int     `yaml:"population" json:"population,omitempty"`
	Initial         *int     `yaml:"initial" json:"initial,omitempty"`
	MaxContacts     *int     `yaml:"max_contacts" json:"max_contacts,omitempty"`
	VaccinationProb *float64 `yaml:"vaccination_prob" json:"vaccination_prob,omitempty"`
	ExposedDays     *int     `yaml:"exposed_days" json:"exposed_days,omitempty"`
	InfectedDays    *int     `yaml:"infected_days" json:"infected_days,omitempty"`
	RecoveryProb    *float64 `yaml:"recovery_prob" json:"recovery_prob,omitempty"`
	MaxRounds       *int     `yaml:"max_rounds" json:"max_rounds,omitempty"`
	Verbose         *bool    `yaml:"verbose" json:"verbose,omitempty"`

	Transmission *TransmissionSpec `yaml:"transmission" json:"transmission,omitempty"`
}

type TransmissionSpec struct {
	Exposed  *float64 `yaml:"exposed" json:"exposed,omitempty"`
	Infected *float64 `yaml:"infected" json:"infected,omitempty"`
}

// Load reads a YAML scenario, checks it against the scenario schema and
// decodes it.
func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	name := filepath.Base(path)

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return t, fmt.Errorf("%s: %w", name, err)
	}
	if doc == nil {
		return t, nil
	}
	if err := validateDoc(doc); err != nil {
		return t, fmt.Errorf("%s: %w", name, err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

// validateDoc normalizes the YAML tree through JSON so the schema
// validator sees plain JSON types.
func validateDoc(doc any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("normalize: %w", err)
	}
	if err := scenarioSchema().Validate(v); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

// Apply overlays the fields set in t onto cfg.
func (t Tuning) Apply(cfg *epidemic.Config) {
	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setFloat := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setInt(&cfg.Population, t.Population)
	setInt(&cfg.Initial, t.Initial)
	setInt(&cfg.MaxContacts, t.MaxContacts)
	setFloat(&cfg.VaccinationProb, t.VaccinationProb)
	setInt(&cfg.ExposedDays, t.ExposedDays)
	setInt(&cfg.InfectedDays, t.InfectedDays)
	setFloat(&cfg.RecoveryProb, t.RecoveryProb)
	setInt(&cfg.MaxRounds, t.MaxRounds)
	if t.Verbose != nil {
		cfg.Verbose = *t.Verbose
	}
	if t.Transmission != nil {
		setFloat(&cfg.Transmission.Exposed, t.Transmission.Exposed)
		setFloat(&cfg.Transmission.Infected, t.Transmission.Infected)
	}
}

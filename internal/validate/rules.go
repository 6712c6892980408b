// Package validate checks candidate answers against domain sanity rules
// before they are released: plausible numeric bands, known geographic names,
// and read-only SQL. It never repairs data, only accepts or rejects.
package validate

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PopulationBand is the plausible population range for one geographic level
// (1 city, 2 district, 3 neighbourhood).
type PopulationBand struct {
	Level int     `yaml:"level"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
}

// CountLimits holds thresholds above which count answers are flagged.
type CountLimits struct {
	Suspicious float64 `yaml:"suspicious"`
	School     float64 `yaml:"school"`
	Hospital   float64 `yaml:"hospital"`
}

// Rules is the immutable rule set loaded at process start.
type Rules struct {
	City            string           `yaml:"city"`
	Districts       []string         `yaml:"districts"`
	PopulationBands []PopulationBand `yaml:"population_bands"`
	FeatureKinds    []string         `yaml:"feature_kinds"`
	CountLimits     CountLimits      `yaml:"count_limits"`
}

//go:embed rules.yaml
var embeddedRules []byte

// LoadDefault parses the embedded rule corpus.
func LoadDefault() (*Rules, error) {
	return loadRules(embeddedRules)
}

// LoadFile parses an operator-supplied rules file.
func LoadFile(path string) (*Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read validation rules: %w", err)
	}
	return loadRules(raw)
}

func loadRules(raw []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("parse validation rules: %w", err)
	}
	if len(r.Districts) == 0 {
		return nil, fmt.Errorf("validation rules define no districts")
	}
	for _, b := range r.PopulationBands {
		if b.Min < 0 || b.Max <= b.Min {
			return nil, fmt.Errorf("population band for level %d is not a valid range", b.Level)
		}
	}
	return &r, nil
}

// Band returns the population band for a geographic level, if configured.
func (r *Rules) Band(level int) (PopulationBand, bool) {
	for _, b := range r.PopulationBands {
		if b.Level == level {
			return b, true
		}
	}
	return PopulationBand{}, false
}

// DistrictNames returns a copy of the known district names.
func (r *Rules) DistrictNames() []string {
	out := make([]string, len(r.Districts))
	copy(out, r.Districts)
	return out
}

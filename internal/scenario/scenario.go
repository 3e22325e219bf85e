package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"catisim/internal/config"
)

// Design groups named variations of a study configuration. Each arm is run as
// its own batch and labels the power rows it produces.
type Design struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Arms        []Arm  `yaml:"arms"`
}

// Arm is one variation within a design.
type Arm struct {
	Name      string    `yaml:"name"`
	Overrides Overrides `yaml:"overrides,omitempty"`
}

// Overrides lists the config fields an arm may change. Nil fields keep the
// base value.
type Overrides struct {
	Rings              *int     `yaml:"rings,omitempty"`
	Coverage           *float64 `yaml:"coverage,omitempty"`
	WashEfficacy       *float64 `yaml:"wash_efficacy,omitempty"`
	AntibioticEfficacy *float64 `yaml:"antibiotic_efficacy,omitempty"`
	VaccineEfficacy    *float64 `yaml:"vaccine_efficacy,omitempty"`
	OffspringMean      *float64 `yaml:"offspring_mean,omitempty"`
	DelayMinDays       *float64 `yaml:"delay_min_days,omitempty"`
	DelayMaxDays       *float64 `yaml:"delay_max_days,omitempty"`
}

// Apply returns a copy of base with the arm's overrides set. The base config
// is never modified.
func (a Arm) Apply(base *config.StudyConfig) *config.StudyConfig {
	cfg := *base
	cfg.DelayBuckets = append([]float64(nil), base.DelayBuckets...)
	cfg.Power.SampleSizes = append([]int(nil), base.Power.SampleSizes...)

	o := a.Overrides
	if o.Rings != nil {
		cfg.Rings = *o.Rings
	}
	if o.Coverage != nil {
		cfg.Intervention.Coverage = *o.Coverage
	}
	if o.WashEfficacy != nil {
		cfg.Intervention.WashEfficacy = *o.WashEfficacy
	}
	if o.AntibioticEfficacy != nil {
		cfg.Intervention.AntibioticEfficacy = *o.AntibioticEfficacy
	}
	if o.VaccineEfficacy != nil {
		cfg.Intervention.VaccineEfficacy = *o.VaccineEfficacy
	}
	if o.OffspringMean != nil {
		cfg.Offspring.Mean = *o.OffspringMean
	}
	if o.DelayMinDays != nil {
		cfg.Intervention.DelayMinDays = *o.DelayMinDays
	}
	if o.DelayMaxDays != nil {
		cfg.Intervention.DelayMaxDays = *o.DelayMaxDays
	}
	return &cfg
}

// Load reads a YAML design definition from disk.
func Load(path string) (*Design, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read design: %w", err)
	}
	var d Design
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("parse design: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks arm names and override ranges.
func (d *Design) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("design name is required")
	}
	if len(d.Arms) == 0 {
		return fmt.Errorf("design %q has no arms", d.Name)
	}
	seen := make(map[string]bool)
	for _, a := range d.Arms {
		if a.Name == "" {
			return fmt.Errorf("design %q: arm name is required", d.Name)
		}
		if seen[a.Name] {
			return fmt.Errorf("design %q: duplicate arm %q", d.Name, a.Name)
		}
		seen[a.Name] = true

		o := a.Overrides
		for name, v := range map[string]*float64{
			"coverage":            o.Coverage,
			"wash_efficacy":       o.WashEfficacy,
			"antibiotic_efficacy": o.AntibioticEfficacy,
			"vaccine_efficacy":    o.VaccineEfficacy,
		} {
			if v != nil && (*v < 0 || *v > 1) {
				return fmt.Errorf("arm %q: %s must be in [0,1], got %v", a.Name, name, *v)
			}
		}
		if o.Rings != nil && *o.Rings <= 0 {
			return fmt.Errorf("arm %q: rings must be positive", a.Name)
		}
		if o.OffspringMean != nil && *o.OffspringMean <= 0 {
			return fmt.Errorf("arm %q: offspring_mean must be positive", a.Name)
		}
		if o.DelayMinDays != nil && *o.DelayMinDays < 0 {
			return fmt.Errorf("arm %q: delay_min_days must be non-negative", a.Name)
		}
		if o.DelayMinDays != nil && o.DelayMaxDays != nil && *o.DelayMinDays > *o.DelayMaxDays {
			return fmt.Errorf("arm %q: delay_min_days exceeds delay_max_days", a.Name)
		}
	}
	return nil
}

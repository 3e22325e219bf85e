// YAML study config loader with CUE validation integration.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration errors. They are fatal: callers refuse to
// start a run on any error wrapping it.
var ErrInvalid = errors.New("invalid configuration")

// Offspring distribution families.
const (
	FamilyNegBin  = "negbin"
	FamilyPoisson = "poisson"
)

// GammaParams parameterizes a gamma distribution by shape and rate (1/scale).
type GammaParams struct {
	Shape float64 `yaml:"shape"`
	Rate  float64 `yaml:"rate"`
}

// Mean returns shape/rate.
func (g GammaParams) Mean() float64 { return g.Shape / g.Rate }

// Population defines the ring population draw: Normal(Mean, SD) truncated
// below at Min.
type Population struct {
	Mean float64 `yaml:"mean"`
	SD   float64 `yaml:"sd"`
	Min  float64 `yaml:"min"`
}

// Offspring defines the offspring distribution of the branching process.
// Dispersion is the negative-binomial size parameter k (variance mu+mu^2/k)
// and is ignored for the poisson family.
type Offspring struct {
	Family     string  `yaml:"family"`
	Mean       float64 `yaml:"mean"`
	Dispersion float64 `yaml:"dispersion"`
}

// IndexDelay defines the ring-level index reporting delay draw,
// Poisson(Mean) whole days.
type IndexDelay struct {
	Mean float64 `yaml:"mean"`
}

// ReportDelay holds the case reporting delay distributions before and after
// the intervention becomes active. Before is passive surveillance and has the
// higher mean; After reflects active case finding during follow-up.
type ReportDelay struct {
	Before GammaParams `yaml:"before"`
	After  GammaParams `yaml:"after"`
}

// Intervention defines the CATI response: how long after the index report the
// team arrives, how long delivery takes, and the component efficacies that
// the effect schedule folds into its phase multipliers.
type Intervention struct {
	DelayMinDays         float64 `yaml:"delay_min_days"`
	DelayMaxDays         float64 `yaml:"delay_max_days"`
	DurationDays         float64 `yaml:"duration_days"`
	Coverage             float64 `yaml:"coverage"`
	WashEfficacy         float64 `yaml:"wash_efficacy"`
	AntibioticEfficacy   float64 `yaml:"antibiotic_efficacy"`
	VaccineEfficacy      float64 `yaml:"vaccine_efficacy"`
	AntibioticWaningDays float64 `yaml:"antibiotic_waning_days"`
	VaccineRampDays      float64 `yaml:"vaccine_ramp_days"`
}

// Heterogeneity defines the per-ring negative-binomial covariate draw.
type Heterogeneity struct {
	Mean       float64 `yaml:"mean"`
	Dispersion float64 `yaml:"dispersion"`
}

// Limits caps per-chain work so a runaway draw cannot wedge a worker.
type Limits struct {
	MaxCases       int `yaml:"max_cases"`
	MaxGenerations int `yaml:"max_generations"`
}

// Power configures the Monte Carlo sweep.
type Power struct {
	Replicates  int     `yaml:"replicates"`
	SampleSizes []int   `yaml:"sample_sizes"`
	Alpha       float64 `yaml:"alpha"`
	Workers     int     `yaml:"workers"`
}

// StudyConfig is the root configuration. It is immutable after Load: nothing
// downstream writes to it, and transformations (scenario arms) operate on
// copies.
type StudyConfig struct {
	Seed                  uint64        `yaml:"seed"`
	Rings                 int           `yaml:"rings"`
	FollowUpDays          float64       `yaml:"follow_up_days"`
	Population            Population    `yaml:"population"`
	InitialImmuneFraction float64       `yaml:"initial_immune_fraction"`
	Offspring             Offspring     `yaml:"offspring"`
	SerialInterval        GammaParams   `yaml:"serial_interval"`
	IndexDelay            IndexDelay    `yaml:"index_delay"`
	ReportDelay           ReportDelay   `yaml:"report_delay"`
	Intervention          Intervention  `yaml:"intervention"`
	Heterogeneity         Heterogeneity `yaml:"heterogeneity"`
	DelayBuckets          []float64     `yaml:"delay_buckets"`
	Limits                Limits        `yaml:"limits"`
	Power                 Power         `yaml:"power"`
}

// Load reads a study config, applies defaults, validates it against the CUE
// schema (when schemaPath is non-empty) and runs the semantic checks.
func Load(configPath, schemaPath string) (*StudyConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if schemaPath != "" {
		if err := validateWithCUE(configPath, data, schemaPath); err != nil {
			return nil, err
		}
	}
	var cfg StudyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *StudyConfig) applyDefaults() {
	if c.Population.Min == 0 {
		c.Population.Min = 1
	}
	if c.Offspring.Family == "" {
		c.Offspring.Family = FamilyNegBin
	}
	if len(c.DelayBuckets) == 0 {
		c.DelayBuckets = []float64{3, 7}
	}
	if c.Limits.MaxCases == 0 {
		c.Limits.MaxCases = 10000
	}
	if c.Limits.MaxGenerations == 0 {
		c.Limits.MaxGenerations = 250
	}
	if c.Power.Replicates == 0 {
		c.Power.Replicates = 500
	}
	if len(c.Power.SampleSizes) == 0 {
		c.Power.SampleSizes = []int{50, 75, 100, 125, 150}
	}
	if c.Power.Alpha == 0 {
		c.Power.Alpha = 0.05
	}
}

// Validate enforces the semantic constraints the CUE schema cannot express on
// its own. All violations wrap ErrInvalid.
func (c *StudyConfig) Validate() error {
	if c.Rings <= 0 {
		return fmt.Errorf("%w: rings must be positive, got %d", ErrInvalid, c.Rings)
	}
	if c.FollowUpDays <= 0 {
		return fmt.Errorf("%w: follow_up_days must be positive, got %g", ErrInvalid, c.FollowUpDays)
	}
	if c.Population.Mean <= 0 || c.Population.SD < 0 || c.Population.Min <= 0 {
		return fmt.Errorf("%w: population mean/sd/min out of range", ErrInvalid)
	}
	if c.InitialImmuneFraction < 0 || c.InitialImmuneFraction >= 1 {
		return fmt.Errorf("%w: initial_immune_fraction must be in [0,1), got %g", ErrInvalid, c.InitialImmuneFraction)
	}
	switch c.Offspring.Family {
	case FamilyNegBin:
		if c.Offspring.Dispersion <= 0 {
			return fmt.Errorf("%w: offspring dispersion must be positive for family %q", ErrInvalid, c.Offspring.Family)
		}
	case FamilyPoisson:
	default:
		return fmt.Errorf("%w: unknown offspring family %q", ErrInvalid, c.Offspring.Family)
	}
	if c.Offspring.Mean <= 0 {
		return fmt.Errorf("%w: offspring mean must be positive, got %g", ErrInvalid, c.Offspring.Mean)
	}
	for name, g := range map[string]GammaParams{
		"serial_interval":     c.SerialInterval,
		"report_delay.before": c.ReportDelay.Before,
		"report_delay.after":  c.ReportDelay.After,
	} {
		if g.Shape <= 0 || g.Rate <= 0 {
			return fmt.Errorf("%w: %s shape and rate must be positive", ErrInvalid, name)
		}
	}
	if c.IndexDelay.Mean < 0 {
		return fmt.Errorf("%w: index_delay mean must be non-negative", ErrInvalid)
	}
	iv := c.Intervention
	if iv.DelayMinDays < 0 || iv.DelayMaxDays < iv.DelayMinDays {
		return fmt.Errorf("%w: intervention delay range [%g,%g] invalid", ErrInvalid, iv.DelayMinDays, iv.DelayMaxDays)
	}
	if iv.DurationDays < 0 {
		return fmt.Errorf("%w: intervention duration_days must be non-negative", ErrInvalid)
	}
	for name, v := range map[string]float64{
		"coverage":            iv.Coverage,
		"wash_efficacy":       iv.WashEfficacy,
		"antibiotic_efficacy": iv.AntibioticEfficacy,
		"vaccine_efficacy":    iv.VaccineEfficacy,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: intervention %s must be in [0,1], got %g", ErrInvalid, name, v)
		}
	}
	if iv.AntibioticWaningDays <= 0 || iv.VaccineRampDays <= iv.AntibioticWaningDays {
		return fmt.Errorf("%w: phase boundaries require 0 < antibiotic_waning_days < vaccine_ramp_days", ErrInvalid)
	}
	if c.Heterogeneity.Mean < 0 || c.Heterogeneity.Dispersion <= 0 {
		return fmt.Errorf("%w: heterogeneity mean/dispersion out of range", ErrInvalid)
	}
	for i := 1; i < len(c.DelayBuckets); i++ {
		if c.DelayBuckets[i] <= c.DelayBuckets[i-1] {
			return fmt.Errorf("%w: delay_buckets must be strictly ascending", ErrInvalid)
		}
	}
	if c.Limits.MaxCases <= 0 || c.Limits.MaxGenerations <= 0 {
		return fmt.Errorf("%w: limits must be positive", ErrInvalid)
	}
	if c.Power.Replicates <= 0 {
		return fmt.Errorf("%w: power replicates must be positive", ErrInvalid)
	}
	if c.Power.Alpha <= 0 || c.Power.Alpha >= 1 {
		return fmt.Errorf("%w: power alpha must be in (0,1), got %g", ErrInvalid, c.Power.Alpha)
	}
	if c.Power.Workers < 0 {
		return fmt.Errorf("%w: power workers must be non-negative", ErrInvalid)
	}
	for _, n := range c.Power.SampleSizes {
		if n <= 0 {
			return fmt.Errorf("%w: sample sizes must be positive, got %d", ErrInvalid, n)
		}
		if n > c.Rings {
			return fmt.Errorf("%w: sample size %d exceeds ring pool %d", ErrInvalid, n, c.Rings)
		}
	}
	return nil
}

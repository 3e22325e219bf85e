package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
seed: 42
rings: 200
follow_up_days: 30
population:
  mean: 500
  sd: 100
  min: 50
initial_immune_fraction: 0.1
offspring:
  family: negbin
  mean: 1.8
  dispersion: 0.35
serial_interval:
  shape: 0.6
  rate: 0.12
index_delay:
  mean: 1.2
report_delay:
  before: {shape: 1.5, rate: 0.5}
  after: {shape: 1.5, rate: 1.5}
intervention:
  delay_min_days: 1
  delay_max_days: 12
  duration_days: 3
  coverage: 0.8
  wash_efficacy: 0.45
  antibiotic_efficacy: 0.62
  vaccine_efficacy: 0.78
  antibiotic_waning_days: 14
  vaccine_ramp_days: 21
heterogeneity:
  mean: 60
  dispersion: 0.8
power:
  replicates: 100
  sample_sizes: [50, 100]
`

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "study.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML), "../../schemas/study.cue")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Rings != 200 || cfg.Seed != 42 {
		t.Errorf("unexpected core fields: %+v", cfg)
	}
	if cfg.Offspring.Family != FamilyNegBin {
		t.Errorf("expected negbin family, got %q", cfg.Offspring.Family)
	}
	// Defaults fill what the file omits.
	if len(cfg.DelayBuckets) != 2 || cfg.DelayBuckets[0] != 3 {
		t.Errorf("delay bucket defaults not applied: %v", cfg.DelayBuckets)
	}
	if cfg.Power.Alpha != 0.05 {
		t.Errorf("alpha default not applied: %g", cfg.Power.Alpha)
	}
	if cfg.Limits.MaxCases != 10000 || cfg.Limits.MaxGenerations != 250 {
		t.Errorf("limit defaults not applied: %+v", cfg.Limits)
	}
}

func TestLoadShippedConfig(t *testing.T) {
	cfg, err := Load("../../config/study.yaml", "../../schemas/study.cue")
	if err != nil {
		t.Fatalf("shipped config should load: %v", err)
	}
	if cfg.Rings != 1000 {
		t.Errorf("unexpected rings: %d", cfg.Rings)
	}
}

func TestLoadSchemaViolation(t *testing.T) {
	bad := `
rings: -5
follow_up_days: 30
`
	_, err := Load(writeConfig(t, bad), "../../schemas/study.cue")
	if err == nil {
		t.Fatal("expected schema violation")
	}
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), ""); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func validConfig() StudyConfig {
	return StudyConfig{
		Seed:           1,
		Rings:          100,
		FollowUpDays:   30,
		Population:     Population{Mean: 500, SD: 100, Min: 50},
		Offspring:      Offspring{Family: FamilyNegBin, Mean: 1.8, Dispersion: 0.35},
		SerialInterval: GammaParams{Shape: 0.6, Rate: 0.12},
		IndexDelay:     IndexDelay{Mean: 1.2},
		ReportDelay: ReportDelay{
			Before: GammaParams{Shape: 1.5, Rate: 0.5},
			After:  GammaParams{Shape: 1.5, Rate: 1.5},
		},
		Intervention: Intervention{
			DelayMinDays: 1, DelayMaxDays: 12, DurationDays: 3,
			Coverage: 0.8, WashEfficacy: 0.45, AntibioticEfficacy: 0.62, VaccineEfficacy: 0.78,
			AntibioticWaningDays: 14, VaccineRampDays: 21,
		},
		Heterogeneity: Heterogeneity{Mean: 60, Dispersion: 0.8},
		DelayBuckets:  []float64{3, 7},
		Limits:        Limits{MaxCases: 10000, MaxGenerations: 250},
		Power:         Power{Replicates: 100, SampleSizes: []int{50}, Alpha: 0.05},
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*StudyConfig)
	}{
		{"zero rings", func(c *StudyConfig) { c.Rings = 0 }},
		{"negative follow-up", func(c *StudyConfig) { c.FollowUpDays = -1 }},
		{"immune fraction one", func(c *StudyConfig) { c.InitialImmuneFraction = 1 }},
		{"unknown family", func(c *StudyConfig) { c.Offspring.Family = "geometric" }},
		{"negbin without dispersion", func(c *StudyConfig) { c.Offspring.Dispersion = 0 }},
		{"zero offspring mean", func(c *StudyConfig) { c.Offspring.Mean = 0 }},
		{"bad serial interval", func(c *StudyConfig) { c.SerialInterval.Rate = 0 }},
		{"delay range inverted", func(c *StudyConfig) { c.Intervention.DelayMaxDays = 0.5 }},
		{"coverage above one", func(c *StudyConfig) { c.Intervention.Coverage = 1.2 }},
		{"ramp before waning", func(c *StudyConfig) { c.Intervention.VaccineRampDays = 7 }},
		{"buckets not ascending", func(c *StudyConfig) { c.DelayBuckets = []float64{7, 3} }},
		{"sample size above pool", func(c *StudyConfig) { c.Power.SampleSizes = []int{500} }},
		{"alpha out of range", func(c *StudyConfig) { c.Power.Alpha = 1.5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}

	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestPoissonFamilyIgnoresDispersion(t *testing.T) {
	cfg := validConfig()
	cfg.Offspring.Family = FamilyPoisson
	cfg.Offspring.Dispersion = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("poisson family should not require dispersion: %v", err)
	}
}

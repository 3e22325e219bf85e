package epidemic

import (
	"errors"
	"reflect"
	"testing"

	"catisim/internal/config"
)

func noEffectSchedule() Schedule {
	return NewSchedule(config.Intervention{AntibioticWaningDays: 14, VaccineRampDays: 21})
}

func baseChainConfig() ChainConfig {
	return ChainConfig{
		Offspring: OffspringParams{
			Kind:        OffspringNegBin,
			Mean:        1.8,
			Dispersion:  0.35,
			Susceptible: 449,
			Population:  500,
		},
		SerialInterval:  config.GammaParams{Shape: 2, Rate: 0.4},
		InterventionEnd: 8,
		Horizon:         30,
		MaxCases:        10000,
		MaxGenerations:  250,
	}
}

func TestRunChainDeterminism(t *testing.T) {
	cc := baseChainConfig()
	sched := noEffectSchedule()
	a, err := RunChain(cc, sched, NewSeededSampler(99, 1))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := RunChain(cc, sched, NewSeededSampler(99, 1))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed produced different chains: %d vs %d cases", len(a), len(b))
	}
}

func TestRunChainIndexOnlyWhenNoSusceptibles(t *testing.T) {
	cc := baseChainConfig()
	cc.Offspring.Susceptible = 0
	cases, err := RunChain(cc, noEffectSchedule(), NewSeededSampler(1, 1))
	if err != nil {
		t.Fatalf("RunChain: %v", err)
	}
	if len(cases) != 1 || cases[0].Generation != 0 {
		t.Fatalf("expected index case only, got %d cases", len(cases))
	}
}

func TestRunChainCapsOffspringAtSusceptibles(t *testing.T) {
	cc := baseChainConfig()
	cc.Offspring = OffspringParams{
		Kind:        OffspringPoisson,
		Mean:        50,
		Susceptible: 3,
		Population:  4,
	}
	cases, err := RunChain(cc, noEffectSchedule(), NewSeededSampler(2, 2))
	if err != nil {
		t.Fatalf("RunChain: %v", err)
	}
	if len(cases) > 4 {
		t.Fatalf("offspring exceeded susceptible pool: %d cases from 3 susceptibles", len(cases))
	}
}

func TestRunChainInvariants(t *testing.T) {
	cc := baseChainConfig()
	cases, err := RunChain(cc, noEffectSchedule(), NewSeededSampler(7, 3))
	if err != nil {
		t.Fatalf("RunChain: %v", err)
	}
	if len(cases)-1 > cc.Offspring.Susceptible {
		t.Fatalf("more secondary cases (%d) than initial susceptibles (%d)", len(cases)-1, cc.Offspring.Susceptible)
	}
	byID := map[int]Case{}
	for _, c := range cases {
		byID[c.ID] = c
	}
	for _, c := range cases {
		if c.Generation == 0 {
			if c.OnsetDay != 0 || c.Parent != -1 {
				t.Fatalf("malformed index case: %+v", c)
			}
			continue
		}
		parent, ok := byID[c.Parent]
		if !ok {
			t.Fatalf("case %d has unknown parent %d", c.ID, c.Parent)
		}
		if parent.OnsetDay > cc.Horizon {
			t.Fatalf("case %d spawned by out-of-horizon parent at day %g", c.ID, parent.OnsetDay)
		}
		if c.OnsetDay < parent.OnsetDay {
			t.Fatalf("case %d onsets before its parent", c.ID)
		}
		if c.Generation != parent.Generation+1 {
			t.Fatalf("case %d generation %d, parent generation %d", c.ID, c.Generation, parent.Generation)
		}
	}
}

func TestRunChainFullSuppression(t *testing.T) {
	// Full coverage and efficacy with the intervention already over at day -1
	// zeroes the susceptible pool before the index case transmits.
	sched := NewSchedule(config.Intervention{
		Coverage:             1,
		WashEfficacy:         1,
		AntibioticWaningDays: 14,
		VaccineRampDays:      21,
	})
	cc := baseChainConfig()
	cc.InterventionEnd = -1
	cases, err := RunChain(cc, sched, NewSeededSampler(5, 5))
	if err != nil {
		t.Fatalf("RunChain: %v", err)
	}
	if len(cases) != 1 {
		t.Fatalf("fully suppressed chain grew to %d cases", len(cases))
	}
}

func TestRunChainCaseCapOverflow(t *testing.T) {
	cc := baseChainConfig()
	cc.Offspring = OffspringParams{
		Kind:        OffspringPoisson,
		Mean:        5000,
		Susceptible: 99999,
		Population:  100000,
	}
	cc.MaxCases = 50
	_, err := RunChain(cc, noEffectSchedule(), NewSeededSampler(8, 8))
	if !errors.Is(err, ErrChainOverflow) {
		t.Fatalf("expected ErrChainOverflow, got %v", err)
	}
}

func TestRunChainGenerationCapOverflow(t *testing.T) {
	cc := baseChainConfig()
	cc.Offspring = OffspringParams{
		Kind:        OffspringPoisson,
		Mean:        20,
		Susceptible: 999999,
		Population:  1000000,
	}
	cc.MaxCases = 1 << 30
	cc.MaxGenerations = 3
	cc.Horizon = 1e9
	_, err := RunChain(cc, noEffectSchedule(), NewSeededSampler(9, 9))
	if !errors.Is(err, ErrChainOverflow) {
		t.Fatalf("expected ErrChainOverflow, got %v", err)
	}
}

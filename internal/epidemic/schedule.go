package epidemic

import (
	"math"

	"catisim/internal/config"
)

// Schedule maps elapsed time since the index onset to the intervention's
// current suppression multiplier. The four phase multipliers are precomputed
// from component efficacies and coverage at construction; evaluation is a
// pure time comparison. Phase boundaries are global offsets relative to the
// per-ring intervention end:
//
//	t <= end                     nothing delivered yet, multiplier 1
//	t <= end + antibioticWaning  wash and antibiotic both protect
//	t <= end + vaccineRamp       antibiotic worn off, vaccine not yet active
//	otherwise                    wash and vaccine protect
type Schedule struct {
	washAntibiotic float64
	washOnly       float64
	washVaccine    float64

	antibioticWaningDays float64
	vaccineRampDays      float64
}

// NewSchedule folds intervention config into phase multipliers. A component
// set with efficacies a and b blocks 1-(1-a)(1-b) of transmission among the
// covered fraction; the susceptible multiplier is one minus that.
func NewSchedule(iv config.Intervention) Schedule {
	mult := func(efficacy float64) float64 {
		return 1 - iv.Coverage*efficacy
	}
	return Schedule{
		washAntibiotic:       mult(combine(iv.WashEfficacy, iv.AntibioticEfficacy)),
		washOnly:             mult(iv.WashEfficacy),
		washVaccine:          mult(combine(iv.WashEfficacy, iv.VaccineEfficacy)),
		antibioticWaningDays: iv.AntibioticWaningDays,
		vaccineRampDays:      iv.VaccineRampDays,
	}
}

func combine(a, b float64) float64 {
	return 1 - (1-a)*(1-b)
}

// MultiplierAt returns the phase multiplier for elapsed day t in a ring whose
// intervention ends at interventionEnd. Exactly one phase matches; each
// boundary belongs to the earlier phase.
func (s Schedule) MultiplierAt(t, interventionEnd float64) float64 {
	switch {
	case t <= interventionEnd:
		return 1
	case t <= interventionEnd+s.antibioticWaningDays:
		return s.washAntibiotic
	case t <= interventionEnd+s.vaccineRampDays:
		return s.washOnly
	default:
		return s.washVaccine
	}
}

// Apply returns p with the susceptible count rescaled by the multiplier at t.
// Multipliers never exceed 1, so the count never grows.
func (s Schedule) Apply(t, interventionEnd float64, p OffspringParams) OffspringParams {
	m := s.MultiplierAt(t, interventionEnd)
	if m != 1 {
		p.Susceptible = int(math.Round(float64(p.Susceptible) * m))
	}
	return p
}

// Branching-process transmission model for CATI rings.
package epidemic

import (
	"catisim/internal/config"
)

// OffspringKind tags the offspring distribution. The family is resolved once
// from config; the chain never inspects config strings at draw time.
type OffspringKind int

const (
	OffspringNegBin OffspringKind = iota
	OffspringPoisson
)

func (k OffspringKind) String() string {
	if k == OffspringPoisson {
		return "poisson"
	}
	return "negbin"
}

// KindFromConfig maps a validated offspring family to its tag.
func KindFromConfig(o config.Offspring) OffspringKind {
	if o.Family == config.FamilyPoisson {
		return OffspringPoisson
	}
	return OffspringNegBin
}

// OffspringParams is the transmission state of one ring. It is threaded
// through the chain loop by value: the effect schedule and the depletion step
// both return updated copies, so no two cases ever share mutable state.
type OffspringParams struct {
	Kind        OffspringKind
	Mean        float64
	Dispersion  float64
	Susceptible int
	Population  float64
}

// Case is one infection in a ring. ID 0 with generation 0 is the index case;
// onset and report are days since the index onset.
type Case struct {
	ID                  int
	Generation          int
	Parent              int // -1 for the index case
	OnsetDay            float64
	ReportDay           float64
	DaySinceIndexReport float64
}

// Ring holds the sampled setup of one ring plus its kept cases.
type Ring struct {
	ID                int
	Population        float64
	InitialImmune     int
	IndexDelayDays    float64 // whole days, drawn at ring setup
	IndexReportDay    float64 // index onset (day 0) + IndexDelayDays
	ResponseDelayDays float64 // whole days between index report and CATI start
	InterventionStart float64
	InterventionEnd   float64
	Cases             []Case
}

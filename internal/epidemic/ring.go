package epidemic

import (
	"math"

	"catisim/internal/config"
)

// GenerateRing simulates one complete ring: setup draws, transmission chain,
// report assignment and the follow-up window filter. The returned ring always
// contains at least the index case. A chain that trips the safety caps
// returns ErrChainOverflow.
func GenerateRing(cfg *config.StudyConfig, sched Schedule, id int, s *Sampler) (*Ring, error) {
	pop := s.TruncNormal(cfg.Population)
	immune := int(math.Round(pop * cfg.InitialImmuneFraction))
	indexDelay := float64(s.Poisson(cfg.IndexDelay.Mean))
	respDelay := float64(s.UniformInt(
		int(math.Round(cfg.Intervention.DelayMinDays)),
		int(math.Round(cfg.Intervention.DelayMaxDays)),
	))

	ring := &Ring{
		ID:                id,
		Population:        pop,
		InitialImmune:     immune,
		IndexDelayDays:    indexDelay,
		IndexReportDay:    indexDelay, // index onset is day 0
		ResponseDelayDays: respDelay,
		InterventionStart: indexDelay + respDelay,
	}
	ring.InterventionEnd = ring.InterventionStart + cfg.Intervention.DurationDays

	susceptible := int(math.Round(pop)) - immune - 1
	if susceptible < 0 {
		susceptible = 0
	}
	cc := ChainConfig{
		Offspring: OffspringParams{
			Kind:        KindFromConfig(cfg.Offspring),
			Mean:        cfg.Offspring.Mean,
			Dispersion:  cfg.Offspring.Dispersion,
			Susceptible: susceptible,
			Population:  pop,
		},
		SerialInterval:  cfg.SerialInterval,
		InterventionEnd: ring.InterventionEnd,
		Horizon:         cfg.FollowUpDays,
		MaxCases:        cfg.Limits.MaxCases,
		MaxGenerations:  cfg.Limits.MaxGenerations,
	}
	cases, err := RunChain(cc, sched, s)
	if err != nil {
		return nil, err
	}
	cases = AssignReports(cases, ring, cfg.ReportDelay, s)
	ring.Cases = FilterWindow(cases, cfg.FollowUpDays)
	return ring, nil
}

package epidemic

import (
	"errors"
	"fmt"
	"sort"

	"catisim/internal/config"
)

// ErrChainOverflow reports a chain that blew through the configured safety
// caps. The ring is degenerate: callers log it and drop it from the batch.
var ErrChainOverflow = errors.New("chain exceeded safety caps")

// ChainConfig parameterizes one chain run.
type ChainConfig struct {
	Offspring       OffspringParams
	SerialInterval  config.GammaParams
	InterventionEnd float64
	Horizon         float64 // transmission stops branching past this day
	MaxCases        int
	MaxGenerations  int
}

// RunChain simulates the branching process of a single ring.
//
// Generation 0 is the index case at day 0. Each generation, cases are
// processed in onset order (ties by creation order); for each case the effect
// schedule first rescales the threaded params, then the offspring mean is
// depleted by the remaining susceptible fraction, then the draw is capped at
// the remaining susceptibles, which shrink by the realized count. Offspring
// with onset past the horizon are recorded but never branch.
func RunChain(cc ChainConfig, sched Schedule, s *Sampler) ([]Case, error) {
	p := cc.Offspring
	cases := []Case{{ID: 0, Generation: 0, Parent: -1}}
	frontier := []int{0}

	for gen := 1; len(frontier) > 0; gen++ {
		if gen > cc.MaxGenerations {
			return nil, fmt.Errorf("%w: generation %d", ErrChainOverflow, gen)
		}
		sort.Slice(frontier, func(i, j int) bool {
			a, b := cases[frontier[i]], cases[frontier[j]]
			if a.OnsetDay != b.OnsetDay {
				return a.OnsetDay < b.OnsetDay
			}
			return a.ID < b.ID
		})

		var next []int
		for _, idx := range frontier {
			parent := cases[idx]
			p = sched.Apply(parent.OnsetDay, cc.InterventionEnd, p)
			if p.Susceptible <= 0 {
				continue
			}
			mean := p.Mean * float64(p.Susceptible) / p.Population
			n := s.Offspring(p.Kind, mean, p.Dispersion)
			if n > p.Susceptible {
				n = p.Susceptible
			}
			for range n {
				if len(cases) >= cc.MaxCases {
					return nil, fmt.Errorf("%w: %d cases", ErrChainOverflow, len(cases))
				}
				c := Case{
					ID:         len(cases),
					Generation: gen,
					Parent:     parent.ID,
					OnsetDay:   parent.OnsetDay + s.Gamma(cc.SerialInterval),
				}
				cases = append(cases, c)
				if c.OnsetDay <= cc.Horizon {
					next = append(next, c.ID)
				}
			}
			p.Susceptible -= n
		}
		frontier = next
	}
	return cases, nil
}

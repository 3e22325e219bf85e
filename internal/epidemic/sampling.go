package epidemic

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"catisim/internal/config"
)

// Sampler draws from the study's distributions using one injected RNG stream,
// so a fixed seed reproduces every draw in order.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler wraps rng. Callers hand each ring or replicate its own stream.
func NewSampler(rng *rand.Rand) *Sampler {
	return &Sampler{rng: rng}
}

// NewSeededSampler builds a sampler on a fresh PCG stream.
func NewSeededSampler(seed1, seed2 uint64) *Sampler {
	return NewSampler(rand.New(rand.NewPCG(seed1, seed2)))
}

// Gamma draws from Gamma(shape, rate).
func (s *Sampler) Gamma(g config.GammaParams) float64 {
	return distuv.Gamma{Alpha: g.Shape, Beta: g.Rate, Src: s.rng}.Rand()
}

// Poisson draws a Poisson(mean) count. A non-positive mean yields zero.
func (s *Sampler) Poisson(mean float64) int {
	if mean <= 0 {
		return 0
	}
	return int(distuv.Poisson{Lambda: mean, Src: s.rng}.Rand())
}

// NegBin draws from NB(mean, size) via the gamma-Poisson mixture:
// lambda ~ Gamma(shape=size, rate=size/mean), count ~ Poisson(lambda).
// Variance is mean + mean^2/size.
func (s *Sampler) NegBin(mean, size float64) float64 {
	if mean <= 0 {
		return 0
	}
	lambda := distuv.Gamma{Alpha: size, Beta: size / mean, Src: s.rng}.Rand()
	if lambda <= 0 {
		return 0
	}
	return distuv.Poisson{Lambda: lambda, Src: s.rng}.Rand()
}

// Offspring draws one offspring count for the tagged distribution.
func (s *Sampler) Offspring(kind OffspringKind, mean, size float64) int {
	if kind == OffspringPoisson {
		return s.Poisson(mean)
	}
	return int(s.NegBin(mean, size))
}

// TruncNormal draws Normal(mean, sd) truncated below at min. After a bounded
// number of rejected draws the lower bound itself is returned.
func (s *Sampler) TruncNormal(p config.Population) float64 {
	n := distuv.Normal{Mu: p.Mean, Sigma: p.SD, Src: s.rng}
	for range 100 {
		if v := n.Rand(); v >= p.Min {
			return v
		}
	}
	return p.Min
}

// UniformInt draws a whole number in [lo, hi].
func (s *Sampler) UniformInt(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.IntN(hi-lo+1)
}

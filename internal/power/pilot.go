// Package power runs the Monte Carlo power estimation over simulated ring
// pools: repeated pilot subsamples, one model fit each, and a binomial
// summary of how often the delay effect reaches significance.
package power

import (
	"fmt"
	"math"
	"math/rand/v2"

	"catisim/internal/glmm"
	"catisim/internal/study"
)

// Pilot draws one pilot study: a without-replacement subsample of n rings
// mapped into the estimator's column form. The offset is the log ring
// population.
func Pilot(rings []study.RingRow, n int, rng *rand.Rand) (glmm.Dataset, error) {
	if n <= 0 || n > len(rings) {
		return glmm.Dataset{}, fmt.Errorf("pilot size %d out of range for pool of %d rings", n, len(rings))
	}
	d := glmm.Dataset{
		Counts:  make([]float64, 0, n),
		Delays:  make([]float64, 0, n),
		Offsets: make([]float64, 0, n),
		Groups:  make([]string, 0, n),
	}
	for _, i := range rng.Perm(len(rings))[:n] {
		r := rings[i]
		d.Counts = append(d.Counts, float64(r.Cases))
		d.Delays = append(d.Delays, r.ResponseDelayDays)
		d.Offsets = append(d.Offsets, math.Log(r.Population))
		d.Groups = append(d.Groups, r.Surveillance)
	}
	return d, nil
}

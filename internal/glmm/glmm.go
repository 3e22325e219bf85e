// Package glmm fits the mixed-effects negative binomial regression used on
// pilot samples. The rest of the pipeline treats Fitter as a black box: any
// estimator that maps a pilot dataset to a delay coefficient with a p-value
// can stand in for the bundled PQL implementation.
package glmm

import (
	"errors"
	"fmt"
)

// ErrNonConvergence marks fits that exhausted their iteration budget or hit a
// singular system. Callers own the policy; the power engine keeps such
// replicates in the denominator as non-significant.
var ErrNonConvergence = errors.New("estimation did not converge")

// Dataset is one pilot sample in column form. Row i is one ring: Counts[i]
// cases reported in the follow-up window, Delays[i] days from index report to
// intervention start, Offsets[i] the log ring population, and Groups[i] the
// surveillance category supplying the random intercept.
type Dataset struct {
	Counts  []float64
	Delays  []float64
	Offsets []float64
	Groups  []string
}

// Len returns the number of rows.
func (d Dataset) Len() int { return len(d.Counts) }

func (d Dataset) validate() error {
	n := len(d.Counts)
	if n < 3 {
		return fmt.Errorf("glmm: need at least 3 rows, got %d", n)
	}
	if len(d.Delays) != n || len(d.Offsets) != n || len(d.Groups) != n {
		return fmt.Errorf("glmm: column lengths differ: counts=%d delays=%d offsets=%d groups=%d",
			n, len(d.Delays), len(d.Offsets), len(d.Groups))
	}
	for i, y := range d.Counts {
		if y < 0 {
			return fmt.Errorf("glmm: negative count %g at row %d", y, i)
		}
	}
	return nil
}

// groupIndex assigns each distinct group label an index in first-appearance
// order, so refits over the same sample stay deterministic.
func (d Dataset) groupIndex() (map[string]int, []string) {
	idx := make(map[string]int)
	var labels []string
	for _, g := range d.Groups {
		if _, ok := idx[g]; !ok {
			idx[g] = len(labels)
			labels = append(labels, g)
		}
	}
	return idx, labels
}

// Result holds one fitted model. DelayCoef is the log rate ratio per day of
// intervention delay; the confidence bounds are 95% Wald intervals.
type Result struct {
	Intercept    float64
	DelayCoef    float64
	DelaySE      float64
	DelayZ       float64
	DelayP       float64
	DelayCILow   float64
	DelayCIHigh  float64
	Theta        float64            // negative binomial size
	GroupVar     float64            // random intercept variance
	GroupEffects map[string]float64 // posterior modes per surveillance category
	Iterations   int
}

// Fitter is the estimation contract of the power pipeline.
type Fitter interface {
	Fit(d Dataset) (Result, error)
}

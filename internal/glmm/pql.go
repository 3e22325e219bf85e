package glmm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Penalized quasi-likelihood for the model
//
//	log mu = offset + b0 + b1*delay + u[group],  u ~ N(0, sigma2)
//
// with negative binomial counts. Each iteration solves the Henderson
// mixed-model equations for the current working response, then updates sigma2
// by an EM step and theta by bisection on the Pearson statistic. Wald
// inference for the delay coefficient comes from the fixed-effect block of
// the inverse coefficient matrix.

const (
	defaultMaxIter = 500
	defaultTol     = 1e-6

	thetaMin = 1e-3
	thetaMax = 1e6

	sigma2Floor = 1e-8
	etaCap      = 30.0
)

// Model is the bundled PQL Fitter. The zero value fits with the default
// iteration budget and tolerance.
type Model struct {
	MaxIter int
	Tol     float64
}

// NewModel returns a Model with default settings.
func NewModel() *Model {
	return &Model{MaxIter: defaultMaxIter, Tol: defaultTol}
}

// Fit estimates the model on one pilot dataset. It draws no randomness: the
// same dataset always yields the same Result.
func (m *Model) Fit(d Dataset) (Result, error) {
	if err := d.validate(); err != nil {
		return Result{}, err
	}
	maxIter := m.MaxIter
	if maxIter <= 0 {
		maxIter = defaultMaxIter
	}
	tol := m.Tol
	if tol <= 0 {
		tol = defaultTol
	}

	n := d.Len()
	idx, labels := d.groupIndex()
	q := len(labels)
	const p = 2 // intercept, delay

	// Combined design matrix [X Z]: intercept, delay, one indicator per
	// surveillance category.
	C := mat.NewDense(n, p+q, nil)
	for i := 0; i < n; i++ {
		C.Set(i, 0, 1)
		C.Set(i, 1, d.Delays[i])
		C.Set(i, p+idx[d.Groups[i]], 1)
	}

	beta := make([]float64, p)
	u := make([]float64, q)
	beta[0] = startIntercept(d)
	sigma2 := 0.1
	theta := startTheta(d)

	eta := make([]float64, n)
	mu := make([]float64, n)
	w := make([]float64, n)
	ystar := make([]float64, n)
	var inv mat.Dense

	for it := 1; it <= maxIter; it++ {
		for i := 0; i < n; i++ {
			eta[i] = clamp(d.Offsets[i]+beta[0]+beta[1]*d.Delays[i]+u[idx[d.Groups[i]]], -etaCap, etaCap)
			mu[i] = math.Exp(eta[i])
			w[i] = mu[i] / (1 + mu[i]/theta)
			ystar[i] = eta[i] - d.Offsets[i] + (d.Counts[i]-mu[i])/mu[i]
		}

		// Henderson system: C'WC plus the ridge I/sigma2 on the random block.
		wc := mat.NewDense(n, p+q, nil)
		wy := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < p+q; j++ {
				wc.Set(i, j, w[i]*C.At(i, j))
			}
			wy.SetVec(i, w[i]*ystar[i])
		}
		M := mat.NewDense(p+q, p+q, nil)
		M.Mul(C.T(), wc)
		for g := 0; g < q; g++ {
			M.Set(p+g, p+g, M.At(p+g, p+g)+1/sigma2)
		}
		rhs := mat.NewVecDense(p+q, nil)
		rhs.MulVec(C.T(), wy)

		var sol mat.VecDense
		if err := sol.SolveVec(M, rhs); err != nil {
			return Result{}, fmt.Errorf("%w: henderson solve at iteration %d: %v", ErrNonConvergence, it, err)
		}
		if err := inv.Inverse(M); err != nil {
			return Result{}, fmt.Errorf("%w: coefficient matrix singular at iteration %d: %v", ErrNonConvergence, it, err)
		}

		prevB0, prevB1, prevS, prevT := beta[0], beta[1], sigma2, theta
		beta[0] = sol.AtVec(0)
		beta[1] = sol.AtVec(1)
		for g := 0; g < q; g++ {
			u[g] = sol.AtVec(p + g)
		}
		for i := 0; i < n; i++ {
			eta[i] = clamp(d.Offsets[i]+beta[0]+beta[1]*d.Delays[i]+u[idx[d.Groups[i]]], -etaCap, etaCap)
			mu[i] = math.Exp(eta[i])
		}

		// EM step for the random intercept variance: posterior modes plus the
		// conditional covariance trace.
		ss := 0.0
		for g := 0; g < q; g++ {
			ss += u[g]*u[g] + inv.At(p+g, p+g)
		}
		sigma2 = math.Max(ss/float64(q), sigma2Floor)

		theta = solveTheta(d.Counts, mu, n-p)

		if !finiteAll(beta[0], beta[1], sigma2, theta) {
			return Result{}, fmt.Errorf("%w: parameters diverged at iteration %d", ErrNonConvergence, it)
		}
		if settled(tol, beta[0], prevB0) && settled(tol, beta[1], prevB1) &&
			settled(tol, sigma2, prevS) && settled(tol, theta, prevT) {
			return m.assemble(labels, beta, u, sigma2, theta, &inv, it), nil
		}
	}
	return Result{}, fmt.Errorf("%w: no parameter fixed point within %d iterations", ErrNonConvergence, maxIter)
}

func (m *Model) assemble(labels []string, beta, u []float64, sigma2, theta float64, inv *mat.Dense, it int) Result {
	se := math.Sqrt(math.Max(inv.At(1, 1), 0))
	z := 0.0
	if se > 0 {
		z = beta[1] / se
	}
	crit := distuv.UnitNormal.Quantile(0.975)
	eff := make(map[string]float64, len(labels))
	for g, lab := range labels {
		eff[lab] = u[g]
	}
	return Result{
		Intercept:    beta[0],
		DelayCoef:    beta[1],
		DelaySE:      se,
		DelayZ:       z,
		DelayP:       2 * distuv.UnitNormal.CDF(-math.Abs(z)),
		DelayCILow:   beta[1] - crit*se,
		DelayCIHigh:  beta[1] + crit*se,
		Theta:        theta,
		GroupVar:     sigma2,
		GroupEffects: eff,
		Iterations:   it,
	}
}

// solveTheta matches the Pearson statistic to its degrees of freedom. The
// statistic is increasing in theta, so a sign change over [thetaMin, thetaMax]
// brackets the root; without one the nearer bound is the estimate.
func solveTheta(y, mu []float64, df int) float64 {
	f := func(theta float64) float64 {
		s := 0.0
		for i := range y {
			r := y[i] - mu[i]
			s += r * r / (mu[i] + mu[i]*mu[i]/theta)
		}
		return s - float64(df)
	}
	lo, hi := thetaMin, thetaMax
	if f(lo) >= 0 {
		return lo
	}
	if f(hi) <= 0 {
		return hi
	}
	for i := 0; i < 200 && hi/lo > 1+1e-10; i++ {
		mid := math.Sqrt(lo * hi)
		if f(mid) < 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return math.Sqrt(lo * hi)
}

func startIntercept(d Dataset) float64 {
	var sy, so float64
	for i := range d.Counts {
		sy += d.Counts[i]
		so += d.Offsets[i]
	}
	n := float64(d.Len())
	meanY := sy / n
	if meanY <= 0 {
		meanY = 0.5
	}
	return math.Log(meanY) - so/n
}

// startTheta seeds the size parameter from the marginal moments, clamped to a
// sane range; equidispersed data starts near Poisson.
func startTheta(d Dataset) float64 {
	n := float64(d.Len())
	var mean float64
	for _, y := range d.Counts {
		mean += y
	}
	mean /= n
	var varY float64
	for _, y := range d.Counts {
		varY += (y - mean) * (y - mean)
	}
	varY /= n - 1
	if mean <= 0 || varY <= mean {
		return 100
	}
	return clamp(mean*mean/(varY-mean), 0.1, 100)
}

func settled(tol, cur, prev float64) bool {
	return math.Abs(cur-prev) <= tol*(math.Abs(prev)+1)
}

func clamp(x, lo, hi float64) float64 {
	switch {
	case x < lo:
		return lo
	case x > hi:
		return hi
	}
	return x
}

func finiteAll(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

package power

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	"catisim/internal/config"
	"catisim/internal/glmm"
	"catisim/internal/metrics"
	"catisim/internal/study"
)

// Engine sweeps candidate sample sizes over one ring pool. Replicates run in
// parallel; their seeds are drawn up front in replicate order, so the output
// is identical for any worker count.
type Engine struct {
	studyID string
	cfg     *config.StudyConfig
	fitter  glmm.Fitter
	log     *slog.Logger
}

// NewEngine builds an engine around a fitter. A nil fitter gets the bundled
// PQL model.
func NewEngine(studyID string, cfg *config.StudyConfig, fitter glmm.Fitter, log *slog.Logger) *Engine {
	if fitter == nil {
		fitter = glmm.NewModel()
	}
	return &Engine{studyID: studyID, cfg: cfg, fitter: fitter, log: log}
}

// Run estimates power for every configured sample size on one arm's ring
// pool. It errors when the pool is smaller than a configured sample size,
// which can happen after degenerate rings were excluded.
func (e *Engine) Run(ctx context.Context, arm string, rings []study.RingRow, rng *rand.Rand) ([]study.PowerRow, error) {
	rows := make([]study.PowerRow, 0, len(e.cfg.Power.SampleSizes))
	for _, n := range e.cfg.Power.SampleSizes {
		seeds := make([][2]uint64, e.cfg.Power.Replicates)
		for i := range seeds {
			seeds[i] = [2]uint64{rng.Uint64(), rng.Uint64()}
		}
		row, err := e.estimate(ctx, arm, n, rings, seeds)
		if err != nil {
			return nil, fmt.Errorf("sample size %d: %w", n, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type outcome struct {
	converged   bool
	significant bool
	coef        float64
}

func (e *Engine) estimate(ctx context.Context, arm string, n int, rings []study.RingRow, seeds [][2]uint64) (study.PowerRow, error) {
	outcomes := make([]outcome, len(seeds))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	for i, seed := range seeds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := Pilot(rings, n, rand.New(rand.NewPCG(seed[0], seed[1])))
			if err != nil {
				return err
			}
			metrics.FitsRun.Inc()
			res, err := e.fitter.Fit(d)
			switch {
			case errors.Is(err, glmm.ErrNonConvergence):
				// Stays in the denominator as non-significant.
				metrics.FitFailures.Inc()
				e.log.Debug("fit did not converge",
					"arm", arm, "sample_size", n, "replicate", i)
			case err != nil:
				return fmt.Errorf("replicate %d: %w", i, err)
			default:
				outcomes[i] = outcome{
					converged:   true,
					significant: res.DelayP < e.cfg.Power.Alpha,
					coef:        res.DelayCoef,
				}
			}
			metrics.ReplicatesCompleted.Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return study.PowerRow{}, err
	}

	// Aggregate in replicate order.
	var converged, significant int
	var coefSum float64
	for _, o := range outcomes {
		if !o.converged {
			continue
		}
		converged++
		coefSum += o.coef
		if o.significant {
			significant++
		}
	}
	total := len(seeds)
	lo, hi := wilson(significant, total, 0.95)
	row := study.PowerRow{
		StudyID:     e.studyID,
		Arm:         arm,
		SampleSize:  n,
		Replicates:  total,
		Converged:   converged,
		Significant: significant,
		Power:       float64(significant) / float64(total),
		PowerCILow:  lo,
		PowerCIHigh: hi,
		Alpha:       e.cfg.Power.Alpha,
	}
	if converged > 0 {
		row.MeanDelayCoef = coefSum / float64(converged)
	}
	e.log.Info("power estimated",
		"arm", arm,
		"sample_size", n,
		"power", row.Power,
		"converged", converged,
		"replicates", total)
	return row, nil
}

func (e *Engine) workers() int {
	if e.cfg.Power.Workers > 0 {
		return e.cfg.Power.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// wilson returns the score interval for k successes in n trials, clamped to
// [0, 1].
func wilson(k, n int, conf float64) (lo, hi float64) {
	if n == 0 {
		return 0, 0
	}
	z := distuv.UnitNormal.Quantile(0.5 + conf/2)
	p := float64(k) / float64(n)
	nn := float64(n)
	denom := 1 + z*z/nn
	center := (p + z*z/(2*nn)) / denom
	half := z * math.Sqrt(p*(1-p)/nn+z*z/(4*nn*nn)) / denom
	lo = math.Max(0, center-half)
	hi = math.Min(1, center+half)
	// The bounds are exact at the extremes; keep rounding from pushing them off.
	if k == 0 {
		lo = 0
	}
	if k == n {
		hi = 1
	}
	return lo, hi
}

package power

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"reflect"
	"testing"

	"catisim/internal/config"
	"catisim/internal/glmm"
	"catisim/internal/study"
)

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func powerConfig(sizes []int, replicates, workers int) *config.StudyConfig {
	return &config.StudyConfig{
		Rings: 1000,
		Power: config.Power{
			Replicates:  replicates,
			SampleSizes: sizes,
			Alpha:       0.05,
			Workers:     workers,
		},
	}
}

// sizeFitter gains significance as the pilot grows, the way a real estimator
// would.
type sizeFitter struct{}

func (sizeFitter) Fit(d glmm.Dataset) (glmm.Result, error) {
	return glmm.Result{DelayP: 0.1 - 0.001*float64(d.Len()), DelayCoef: -0.2}, nil
}

// failFitter never converges.
type failFitter struct{}

func (failFitter) Fit(glmm.Dataset) (glmm.Result, error) {
	return glmm.Result{}, glmm.ErrNonConvergence
}

// hashFitter derives its outcome from the subsample contents, so identical
// draws give identical results no matter which worker ran them.
type hashFitter struct{}

func (hashFitter) Fit(d glmm.Dataset) (glmm.Result, error) {
	var s float64
	for i := range d.Counts {
		s += d.Counts[i]*0.37 + d.Delays[i]*0.11 + d.Offsets[i]*0.05
	}
	_, frac := math.Modf(s)
	if frac < 0.15 {
		return glmm.Result{}, glmm.ErrNonConvergence
	}
	return glmm.Result{DelayP: frac, DelayCoef: -frac}, nil
}

func TestEngineMonotonePower(t *testing.T) {
	cfg := powerConfig([]int{40, 60, 80}, 20, 4)
	e := NewEngine("t", cfg, sizeFitter{}, testLogger())
	rows, err := e.Run(context.Background(), "baseline", makePool(100), rand.New(rand.NewPCG(7, 8)))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	for i, row := range rows {
		if row.SampleSize != cfg.Power.SampleSizes[i] {
			t.Errorf("row %d sample size %d, want %d", i, row.SampleSize, cfg.Power.SampleSizes[i])
		}
		if row.Replicates != 20 || row.Converged != 20 {
			t.Errorf("row %d replicates %d converged %d, want 20/20", i, row.Replicates, row.Converged)
		}
		if row.PowerCILow > row.Power || row.Power > row.PowerCIHigh {
			t.Errorf("row %d interval [%g, %g] misses power %g", i, row.PowerCILow, row.PowerCIHigh, row.Power)
		}
		if math.Abs(row.MeanDelayCoef+0.2) > 1e-9 {
			t.Errorf("row %d mean delay coefficient %g, want -0.2", i, row.MeanDelayCoef)
		}
		if i > 0 && row.Power < rows[i-1].Power {
			t.Errorf("power fell from %g to %g between sizes %d and %d",
				rows[i-1].Power, row.Power, rows[i-1].SampleSize, row.SampleSize)
		}
	}
	if rows[0].Power >= rows[2].Power {
		t.Errorf("power did not rise across the sweep: %g to %g", rows[0].Power, rows[2].Power)
	}
}

func TestEngineNonConvergencePolicy(t *testing.T) {
	cfg := powerConfig([]int{30}, 20, 2)
	e := NewEngine("t", cfg, failFitter{}, testLogger())
	rows, err := e.Run(context.Background(), "baseline", makePool(60), rand.New(rand.NewPCG(1, 1)))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	row := rows[0]
	if row.Replicates != 20 {
		t.Errorf("replicates %d, want all 20 kept in the denominator", row.Replicates)
	}
	if row.Converged != 0 || row.Significant != 0 || row.Power != 0 {
		t.Errorf("failed fits leaked into the summary: %+v", row)
	}
	if row.MeanDelayCoef != 0 {
		t.Errorf("mean delay coefficient %g without any converged fit", row.MeanDelayCoef)
	}
}

func TestEngineReproducibleAcrossWorkers(t *testing.T) {
	pool := makePool(60)
	run := func(workers int) []study.PowerRow {
		cfg := powerConfig([]int{25, 50}, 30, workers)
		e := NewEngine("t", cfg, hashFitter{}, testLogger())
		rows, err := e.Run(context.Background(), "baseline", pool, rand.New(rand.NewPCG(9, 9)))
		if err != nil {
			t.Fatalf("Run with %d workers: %v", workers, err)
		}
		return rows
	}
	if !reflect.DeepEqual(run(1), run(8)) {
		t.Fatal("worker count changed the sweep output")
	}
}

func TestEngineRejectsShrunkenPool(t *testing.T) {
	cfg := powerConfig([]int{20}, 5, 1)
	e := NewEngine("t", cfg, sizeFitter{}, testLogger())
	if _, err := e.Run(context.Background(), "baseline", makePool(10), rand.New(rand.NewPCG(2, 2))); err == nil {
		t.Fatal("pool smaller than the sample size accepted")
	}
}

func TestWilsonInterval(t *testing.T) {
	lo, hi := wilson(50, 100, 0.95)
	if math.Abs(lo-0.4038) > 0.005 || math.Abs(hi-0.5962) > 0.005 {
		t.Errorf("wilson(50, 100) = [%g, %g], want about [0.404, 0.596]", lo, hi)
	}
	if lo, hi = wilson(0, 20, 0.95); lo > 1e-12 || hi < 0.1 || hi > 0.4 {
		t.Errorf("wilson(0, 20) = [%g, %g], want about [0, 0.16]", lo, hi)
	}
	if lo, hi = wilson(20, 20, 0.95); hi < 1-1e-12 || lo < 0.6 || lo > 0.95 {
		t.Errorf("wilson(20, 20) = [%g, %g], want about [0.84, 1]", lo, hi)
	}
}

// Package metrics holds the Prometheus counters served on /metrics. They are
// package level so the simulator and the power engine share one set per
// process regardless of how many instances a run constructs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RingsSimulated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catisim_rings_simulated_total",
		Help: "Number of rings simulated",
	})
	CasesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catisim_cases_generated_total",
		Help: "Number of cases kept by the follow-up window across all rings",
	})
	DegenerateRings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catisim_degenerate_rings_total",
		Help: "Number of rings excluded because their chain hit a safety cap",
	})
	FitsRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catisim_fits_total",
		Help: "Number of pilot model fits attempted",
	})
	FitFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catisim_fit_failures_total",
		Help: "Number of pilot model fits that did not converge",
	})
	ReplicatesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catisim_replicates_total",
		Help: "Number of Monte Carlo replicates completed",
	})
)

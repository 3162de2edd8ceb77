package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Escrow operations by name and outcome (ok, rejected, error).
	EscrowOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_operations_total",
			Help: "Escrow engine operations",
		},
		[]string{"op", "outcome"},
	)

	// Auto-release sweep.
	SweepReleased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "escrow_sweep_released_total",
			Help: "Transactions settled by the auto-release sweep",
		},
	)
	SweepFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "escrow_sweep_failures_total",
			Help: "Per-transaction failures during the auto-release sweep",
		},
	)
	SweepEligible = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "escrow_sweep_eligible",
			Help: "Transactions eligible at the start of the last sweep",
		},
	)
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(EscrowOps)
	prometheus.MustRegister(SweepReleased)
	prometheus.MustRegister(SweepFailures)
	prometheus.MustRegister(SweepEligible)
}

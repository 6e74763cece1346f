package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_runs_started_total",
		Help: "Total number of reconciliation runs started.",
	})

	RunsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_runs_finished_total",
		Help: "Total number of reconciliation runs finished, labelled by terminal status.",
	}, []string{"status"})

	RecordsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_records_processed_total",
		Help: "Total records the engine moved out of PENDING, labelled by outcome.",
	}, []string{"outcome"})

	DisputesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_disputes_detected_total",
		Help: "Total amount-mismatch disputes detected.",
	})

	ClaimConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_claim_conflicts_total",
		Help: "Candidate claims lost to a concurrent run (conditional update hit zero rows).",
	})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconciliation_run_duration_seconds",
		Help:    "Wall-clock duration of a full reconciliation run.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	})
)

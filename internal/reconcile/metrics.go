package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// termsCreated counts terms created by reconciliation.
	// Labels: taxonomy, level (1, 2, 3)
	termsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxsync",
		Subsystem: "reconcile",
		Name:      "terms_created_total",
		Help:      "Terms created by reconciliation",
	}, []string{"taxonomy", "level"})

	// opFailures counts absorbed store failures.
	// Labels: taxonomy, op (list, create, rename, delete)
	opFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxsync",
		Subsystem: "reconcile",
		Name:      "op_failures_total",
		Help:      "Store operations that failed and were skipped during reconciliation",
	}, []string{"taxonomy", "op"})

	// directivesApplied counts directives that matched an existing term.
	// Labels: taxonomy, action (rename, delete)
	directivesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxsync",
		Subsystem: "reconcile",
		Name:      "directives_applied_total",
		Help:      "Rename/delete directives applied to existing terms",
	}, []string{"taxonomy", "action"})

	// passDuration measures one full directive + reconcile pass.
	// Labels: taxonomy
	passDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "taxsync",
		Subsystem: "reconcile",
		Name:      "pass_duration_seconds",
		Help:      "Duration of one synchronization pass over a taxonomy",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"taxonomy"})
)

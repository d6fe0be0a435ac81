package schema

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// checks counts CheckSchema outcomes.
	// Labels: result (current, scheduled, pending)
	checks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxsync",
		Subsystem: "schema",
		Name:      "checks_total",
		Help:      "Schema version checks by outcome",
	}, []string{"result"})

	// updates counts UpdateSchema runs.
	// Labels: trigger (deferred, provision, manual), result (success, failure)
	updates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxsync",
		Subsystem: "schema",
		Name:      "updates_total",
		Help:      "Schema update runs by trigger and result",
	}, []string{"trigger", "result"})
)

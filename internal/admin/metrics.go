package admin

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxsync",
			Subsystem: "admin",
			Name:      "requests_total",
			Help:      "Admin HTTP requests by route and status",
		},
		[]string{"route", "method", "status"},
	)

	termsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxsync",
			Subsystem: "admin",
			Name:      "terms_inserted_total",
			Help:      "Terms created through single-term insertion",
		},
		[]string{"taxonomy"},
	)
)

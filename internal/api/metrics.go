package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shipper_agent",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Total number of requests issued to the order service.",
	}, []string{"method", "outcome"})

	fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shipper_agent",
		Subsystem: "api",
		Name:      "fallbacks_total",
		Help:      "Total number of fallback endpoint attempts per operation.",
	}, []string{"operation"})
)

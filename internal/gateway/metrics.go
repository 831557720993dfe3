package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pesapay",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Total requests sent to the mobile-money gateway.",
		},
		[]string{"endpoint", "outcome"}, // outcome: ok, transport, gateway_error, malformed
	)

	requestDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pesapay",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Duration of requests to the mobile-money gateway.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	tokenRefreshCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pesapay",
			Subsystem: "gateway",
			Name:      "token_refreshes_total",
			Help:      "Credential exchanges performed by the credential store.",
		},
		[]string{"outcome"},
	)
)

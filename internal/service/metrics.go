package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pesapay",
			Name:      "transaction_transitions_total",
			Help:      "Terminal transitions applied to the ledger.",
		},
		[]string{"kind", "state", "source"},
	)

	callbacksCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pesapay",
			Name:      "callbacks_total",
			Help:      "Gateway callbacks received.",
		},
		[]string{"kind", "outcome"}, // outcome: applied, duplicate, conflict, late, orphaned, malformed
	)

	conflictsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pesapay",
			Name:      "result_conflicts_total",
			Help:      "Terminal results that contradicted an already recorded result.",
		},
		[]string{"kind", "source"},
	)

	orphansCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pesapay",
			Name:      "orphan_callbacks_total",
			Help:      "Orphan callback lifecycle events.",
		},
		[]string{"outcome"}, // parked, matched, dropped
	)

	sweepCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pesapay",
			Name:      "sweep_results_total",
			Help:      "Outcomes of pending transactions examined by the sweeper.",
		},
		[]string{"outcome"}, // resolved, expired, pending, error
	)
)

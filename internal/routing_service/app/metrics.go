package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	routingDecisionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "routing",
			Name:      "decisions_total",
			Help:      "Total routing decisions by outcome.",
		},
		[]string{"outcome"},
	)

	routingDecisionDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "routing",
			Name:      "decision_duration_seconds",
			Help:      "Wall-clock time spent producing a routing decision.",
			Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .05, .1},
		},
	)

	decisionLogDroppedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "routing",
			Name:      "decision_log_dropped_total",
			Help:      "Decisions dropped because the audit log queue was full or closed.",
		},
	)

	decisionLogFlushCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "routing",
			Name:      "decision_log_flush_total",
			Help:      "Decision log batch writes by result.",
		},
		[]string{"result"}, // "ok", "error", "breaker_open"
	)

	snapshotRefreshCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "routing",
			Name:      "snapshot_refresh_total",
			Help:      "Rule and gateway snapshot refreshes by result.",
		},
		[]string{"result"},
	)

	snapshotRulesGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "routing",
			Name:      "snapshot_rules",
			Help:      "Active rules in the current snapshot.",
		},
	)

	snapshotGatewaysGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "routing",
			Name:      "snapshot_gateways",
			Help:      "Gateway connections in the current snapshot.",
		},
	)
)

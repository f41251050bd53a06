package strategy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// executionsTotal tracks strategy executions by strategy and outcome
	executionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_strategy_executions_total",
			Help: "Total strategy executions by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	// fallbacksTotal tracks navigation fallbacks by source
	fallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_fallbacks_total",
			Help: "Total navigation fallback responses by source",
		},
		[]string{"source"}, // "runtime", "offline"
	)

	// revalidationsTotal tracks background revalidations by result
	revalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_revalidations_total",
			Help: "Total background revalidation attempts by result",
		},
		[]string{"result"}, // "success", "fetch_error", "snapshot_error", "store_error"
	)
)

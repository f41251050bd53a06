package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// installsTotal tracks install attempts by result
	installsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_installs_total",
			Help: "Total number of precache install attempts by result",
		},
		[]string{"result"}, // "success", "failure"
	)

	// precacheEntries tracks manifest entries stored during install
	precacheEntries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_precache_entries_total",
			Help: "Total number of manifest entries precached",
		},
	)

	// precacheDuration tracks install duration
	precacheDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "offline_precache_duration_seconds",
			Help:    "Duration of the precache install step in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// activationsTotal tracks activation attempts by result
	activationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_activations_total",
			Help: "Total number of activation attempts by result",
		},
		[]string{"result"},
	)

	// sweptPartitions tracks stale partitions removed during activation
	sweptPartitions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_swept_partitions_total",
			Help: "Total number of stale partitions swept on activation",
		},
	)
)

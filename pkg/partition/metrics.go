package partition

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks partition hits by role (static, runtime)
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_hits_total",
			Help: "Total number of cache partition hits",
		},
		[]string{"role"}, // "static", "runtime"
	)

	// cacheMisses tracks partition misses by role
	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_misses_total",
			Help: "Total number of cache partition misses",
		},
		[]string{"role"},
	)

	// entryBytes tracks entry bytes moved per role
	entryBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_entry_bytes",
			Help: "Total bytes read from or written to cache partitions",
		},
		[]string{"role"},
	)

	// storeErrors tracks store operation errors
	storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_errors_total",
			Help: "Total number of partition store operation errors",
		},
		[]string{"operation"}, // "open", "names", "drop", "get", "put"
	)

	// partitionsDropped tracks partitions removed by the generation sweeper
	partitionsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_partitions_dropped_total",
			Help: "Total number of cache partitions dropped",
		},
	)
)

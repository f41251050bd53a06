// Package metrics provides the centralized Prometheus metrics registry for
// the offline worker. All metrics are defined in their respective packages
// (partition, lifecycle, strategy, notify, worker) to maintain modularity
// and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the offline worker.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Partition Metrics (pkg/partition):
//   - offline_cache_hits_total{role} (Counter): Partition hits by role
//   - offline_cache_misses_total{role} (Counter): Partition misses by role
//   - offline_cache_entry_bytes{role} (Counter): Entry bytes written by role
//   - offline_cache_errors_total{operation} (Counter): Store operation errors
//   - offline_partitions_dropped_total (Counter): Stale partitions dropped
//
// Lifecycle Metrics (pkg/lifecycle):
//   - offline_installs_total{result} (Counter): Precache installs by result
//   - offline_precache_entries_total (Counter): Manifest entries precached
//   - offline_precache_duration_seconds (Histogram): Install duration
//   - offline_activations_total{result} (Counter): Activations by result
//   - offline_swept_partitions_total (Counter): Partitions removed during activation
//
// Strategy Metrics (pkg/strategy):
//   - offline_strategy_executions_total{strategy, outcome} (Counter): Strategy runs by outcome
//   - offline_fallbacks_total{source} (Counter): Navigation fallbacks served by source
//   - offline_revalidations_total{result} (Counter): Background revalidations by result
//
// Notification Metrics (pkg/notify):
//   - offline_pushes_total{result} (Counter): Push events handled by result
//   - offline_notification_clicks_total{result} (Counter): Notification clicks by resolution
//
// Request Metrics (pkg/worker):
//   - offline_requests_total{class, status} (Counter): Intercepted requests by class and status
//   - offline_request_duration_seconds{class} (Histogram): Request duration by class
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(offline_cache_hits_total[5m])) /
//   (sum(rate(offline_cache_hits_total[5m])) + sum(rate(offline_cache_misses_total[5m])))
//
//   # Offline Fallbacks Served
//   rate(offline_fallbacks_total{source="offline"}[5m])
//
//   # Revalidation Failure Rate
//   rate(offline_revalidations_total{result!="success"}[5m])
//
//   # P95 Request Latency by Class
//   histogram_quantile(0.95, rate(offline_request_duration_seconds_bucket[5m]))

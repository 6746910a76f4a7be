// Package observability provides metrics and tracing instrumentation.
package observability

import (
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chattersphere_redis_error_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chattersphere_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// MembershipMutations counts join/leave/request/approve/reject outcomes.
	MembershipMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chattersphere_membership_mutations_total",
		Help: "Total number of community membership mutations by action",
	}, []string{"action"})

	// NotificationFanout counts notifications emitted by type.
	NotificationFanout = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chattersphere_notification_fanout_total",
		Help: "Total number of notifications emitted by type",
	}, []string{"type"})
)

// InitMetrics creates the fiberprometheus middleware for HTTP metrics.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(serviceName)
}

// ObserveQuery records the latency of a database query.
func ObserveQuery(operation, table string, start time.Time) {
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}

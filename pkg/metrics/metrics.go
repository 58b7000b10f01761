package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Breach lookup metrics
	BreachLookups       *prometheus.CounterVec
	BreachLookupLatency prometheus.Histogram
	BreachDecisions     *prometheus.CounterVec
	BreachFailOpen      prometheus.Counter

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxQueueSize         prometheus.Gauge

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisLatency    *prometheus.HistogramVec

	// Database metrics
	DatabaseConnections prometheus.Gauge
}

// NewMetrics creates and registers all application metrics on the default
// registry.
func NewMetrics(namespace, subsystem string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace, subsystem)
}

// NewMetricsWith registers on a caller-supplied registry, which keeps tests
// free of duplicate-registration panics.
func NewMetricsWith(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BreachLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "breach_lookups_total",
			Help:      "Total number of breach-corpus range lookups by outcome",
		}, []string{"outcome"}),
		BreachLookupLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "breach_lookup_duration_seconds",
			Help:      "Time spent querying the breach range API",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		BreachDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "breach_decisions_total",
			Help:      "Password breach policy decisions by path and decision",
		}, []string{"path", "decision"}),
		BreachFailOpen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "breach_fail_open_total",
			Help:      "Passwords accepted because the breach lookup failed",
		}),

		OutboxEventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxQueueSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_queue_size",
			Help:      "Current number of events in the outbox queue",
		}),

		RedisOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "redis_operations_total",
			Help:      "Total number of Redis operations",
		}, []string{"operation", "status"}),
		RedisLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "redis_operation_duration_seconds",
			Help:      "Duration of Redis operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		}, []string{"operation"}),

		DatabaseConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_connections",
			Help:      "Current number of open database connections",
		}),
	}
}

// WatchDBConnections samples the connection pool into DatabaseConnections
// until ctx ends. Meant to run on its own goroutine.
func (m *Metrics) WatchDBConnections(ctx context.Context, db *sql.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.DatabaseConnections.Set(float64(db.Stats().OpenConnections))
		}
	}
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Access-control metrics
	AccessDecisions *prometheus.CounterVec
	AccessLatency   prometheus.Histogram

	// Field-encryption metrics
	DecryptionFailures prometheus.Counter

	// Audit metrics
	AuditRecordsWritten  prometheus.Counter
	AuditWriteFailures   prometheus.Counter
	AuditEventsPublished prometheus.Counter
	AuditPublishLatency  prometheus.Histogram

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
	DatabaseLatency    *prometheus.HistogramVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		AccessDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "access_decisions_total",
			Help:      "Access decisions by outcome (allowed, denied)",
		}, []string{"permission", "outcome"}),
		AccessLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "access_resolution_duration_seconds",
			Help:      "Time spent resolving program access",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		DecryptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "field_decryption_failures_total",
			Help:      "Field values that no configured key could decrypt",
		}),
		AuditRecordsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "audit_records_written_total",
			Help:      "Audit records committed to the audit store",
		}),
		AuditWriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "audit_write_failures_total",
			Help:      "Audit writes that failed (and failed the triggering action)",
		}),
		AuditEventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "audit_events_published_total",
			Help:      "Audit records fanned out to the message broker",
		}),
		AuditPublishLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "audit_publish_duration_seconds",
			Help:      "Time spent publishing audit records",
			Buckets:   prometheus.DefBuckets,
		}),
		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Database operations by type and status",
		}, []string{"operation", "status"}),
		DatabaseLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operation_duration_seconds",
			Help:      "Database operation latency",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),
	}
}

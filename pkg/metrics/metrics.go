package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Domain metrics
	ProceduresCreated prometheus.Counter
	ProceduresDeleted prometheus.Counter
	ProcedureRevenue  prometheus.Counter
	StockMovements    *prometheus.CounterVec
	LoyaltyAwarded    prometheus.Counter

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// NewMetrics creates all application metrics and registers them with reg.
// A nil reg registers with the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ProceduresCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "procedures_created_total",
			Help:      "Total number of procedures created",
		}),
		ProceduresDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "procedures_deleted_total",
			Help:      "Total number of procedures deleted",
		}),
		ProcedureRevenue: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "procedure_revenue_total",
			Help:      "Sum of final prices billed for created procedures",
		}),
		StockMovements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "material_stock_movements_total",
			Help:      "Units added to or removed from material stock",
		}, []string{"direction"}),
		LoyaltyAwarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loyalty_points_awarded_total",
			Help:      "Loyalty points awarded to patients",
		}),

		// Outbox metrics
		OutboxEventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),

		// Database metrics
		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}

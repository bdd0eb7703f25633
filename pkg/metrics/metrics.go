package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Pipeline metrics
	EventsReceived   *prometheus.CounterVec
	EventsSuppressed *prometheus.CounterVec
	EventsFailed     prometheus.Counter

	// Delivery metrics
	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec
	SendDuration        *prometheus.HistogramVec
	RateLimitDenied     prometheus.Counter

	// Batcher metrics
	PendingBatches  prometheus.Gauge
	BatchesFlushed  prometheus.Counter
	BatchesHeldBack prometheus.Counter
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		EventsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Total number of camera events received, by source dialect",
		}, []string{"source"}),
		EventsSuppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_suppressed_total",
			Help:      "Total number of events suppressed without delivery",
		}, []string{"reason"}),
		EventsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of events that failed processing",
		}),
		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Total number of SMS notifications delivered, by channel",
		}, []string{"channel"}),
		NotificationsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Total number of SMS notifications that exhausted all channels",
		}, []string{"channel"}),
		SendDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Time spent in a single channel send attempt",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"channel"}),
		RateLimitDenied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_denied_total",
			Help:      "Total number of flush attempts held back by rate limiting",
		}),
		PendingBatches: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_batches",
			Help:      "Current number of non-empty notification batches",
		}),
		BatchesFlushed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_flushed_total",
			Help:      "Total number of batches flushed to the delivery chain",
		}),
		BatchesHeldBack: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_held_back_total",
			Help:      "Total number of flush cycles in which a due batch was held back",
		}),
	}
}

// NewForTesting creates unregistered metrics so tests can construct
// components without colliding on the default registry.
func NewForTesting() *Metrics {
	return &Metrics{
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_received_total",
		}, []string{"source"}),
		EventsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_suppressed_total",
		}, []string{"reason"}),
		EventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "events_failed_total",
		}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_sent_total",
		}, []string{"channel"}),
		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_failed_total",
		}, []string{"channel"}),
		SendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "send_duration_seconds",
		}, []string{"channel"}),
		RateLimitDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rate_limit_denied_total",
		}),
		PendingBatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pending_batches",
		}),
		BatchesFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batches_flushed_total",
		}),
		BatchesHeldBack: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batches_held_back_total",
		}),
	}
}

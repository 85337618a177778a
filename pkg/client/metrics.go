package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the runtime's Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "falk").
	Namespace string

	// Subsystem is the metrics subsystem (default: "client").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for round trip duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: a private registry owned by the runtime.
	Registry prometheus.Registerer
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "falk",
		Subsystem: "client",
		Buckets:   prometheus.DefBuckets,
	}
}

// Metrics holds the runtime's collectors.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	protocolErrors  *prometheus.CounterVec
	mountsTotal     prometheus.Counter
	unmountsTotal   prometheus.Counter
	hookFailures    *prometheus.CounterVec
}

// Outcome label values of requests_total.
const (
	outcomeOK        = "ok"
	outcomeError     = "error"
	outcomeCancelled = "cancelled"
)

func newMetrics(config MetricsConfig) *Metrics {
	factory := promauto.With(config.Registry)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "requests_total",
			Help:        "Total number of mutation round trips by transport and outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"transport", "outcome"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "request_duration_seconds",
			Help:        "Mutation round trip duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"transport"}),

		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "requests_in_flight",
			Help:        "Number of mutation requests awaiting a response",
			ConstLabels: config.ConstLabels,
		}),

		protocolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "protocol_errors_total",
			Help:        "Total protocol violations by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		mountsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "mounts_total",
			Help:        "Total number of components mounted by patches",
			ConstLabels: config.ConstLabels,
		}),

		unmountsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "unmounts_total",
			Help:        "Total number of components unmounted by patches",
			ConstLabels: config.ConstLabels,
		}),

		hookFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "hook_failures_total",
			Help:        "Total inline hook handler failures by hook",
			ConstLabels: config.ConstLabels,
		}, []string{"hook"}),
	}
}

// observeRequest records one finished round trip.
func (m *Metrics) observeRequest(transport, outcome string, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(transport, outcome).Inc()
	m.requestDuration.WithLabelValues(transport).Observe(elapsed.Seconds())
}

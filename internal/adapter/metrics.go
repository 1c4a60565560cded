package adapter

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess     = "success"
	outcomeFailure     = "failure"
	outcomeError       = "error"
	outcomeUnavailable = "unavailable"
)

// Metrics are the dispatcher's Prometheus collectors.
type Metrics struct {
	dispatches *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	binds      *prometheus.CounterVec
}

// NewMetrics registers the dispatcher collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		dispatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "transbank",
				Name:      "dispatch_total",
				Help:      "Dispatched transaction operations by type, verb and outcome",
			},
			[]string{"type", "verb", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "transbank",
				Name:      "dispatch_duration_seconds",
				Help:      "Time spent in upstream client operations",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"verb"},
		),
		binds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "transbank",
				Name:      "client_binds_total",
				Help:      "Client constructions by processor",
			},
			[]string{"processor"},
		),
	}
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *Metrics
)

// DefaultMetrics returns the collectors registered on the default Prometheus registry.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func (m *Metrics) observeDispatch(typ, verb, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(typ, verb, outcome).Inc()
	if outcome != outcomeUnavailable {
		m.duration.WithLabelValues(verb).Observe(seconds)
	}
}

func (m *Metrics) observeBind(processor string) {
	if m == nil {
		return
	}
	m.binds.WithLabelValues(processor).Inc()
}

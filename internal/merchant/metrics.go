package merchant

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMetrics registers the client collectors on reg. A nil reg yields
// unregistered collectors, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkpay",
			Subsystem: "merchant",
			Name:      "requests_total",
			Help:      "Merchant backend calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "linkpay",
			Subsystem: "merchant",
			Name:      "request_duration_seconds",
			Help:      "Merchant backend round trip latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.latency)
	}
	return m
}

func outcome(err error) string {
	var (
		cfgErr *ConfigurationError
		serErr *SerializationError
		trErr  *TransportError
		apiErr *APIError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &cfgErr):
		return "configuration_error"
	case errors.As(err, &serErr):
		return "serialization_error"
	case errors.As(err, &trErr):
		return "transport_error"
	case errors.As(err, &apiErr):
		return "api_error"
	}
	return "error"
}

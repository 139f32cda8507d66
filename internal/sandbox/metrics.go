package sandbox

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	events *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkpay",
			Subsystem: "sandbox",
			Name:      "events_total",
			Help:      "Sandbox backend operations by kind and outcome.",
		}, []string{"event", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.events)
	}
	return m
}

func (m *Metrics) event(kind, outcome string) { m.events.WithLabelValues(kind, outcome).Inc() }

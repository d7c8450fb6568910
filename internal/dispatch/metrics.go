package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for outbound deliveries.
// A zero registry (NewNoopMetrics) keeps the Sender usable in tests.
type Metrics struct {
	sendTotal    *prometheus.CounterVec
	attemptTotal *prometheus.CounterVec
	sendDuration prometheus.Histogram
}

// NewMetrics creates dispatch metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		sendTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsend_dispatch_send_total",
				Help: "Total number of delivery sends by outcome.",
			},
			[]string{"outcome"},
		),
		attemptTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsend_dispatch_attempt_total",
				Help: "Total number of delivery attempts by disposition.",
			},
			[]string{"disposition"},
		),
		sendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docsend_dispatch_send_duration_seconds",
				Help:    "End-to-end duration of delivery sends including retries.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	for _, c := range []prometheus.Collector{m.sendTotal, m.attemptTotal, m.sendDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewNoopMetrics creates metrics backed by an unregistered registry.
func NewNoopMetrics() *Metrics {
	m, _ := NewMetrics(prometheus.NewRegistry())
	return m
}

// IncSend counts a completed send by outcome ("success" or "failure").
func (m *Metrics) IncSend(outcome string) {
	m.sendTotal.WithLabelValues(outcome).Inc()
}

// IncAttempt counts an individual attempt disposition (currently "retry").
func (m *Metrics) IncAttempt(disposition string) {
	m.attemptTotal.WithLabelValues(disposition).Inc()
}

// ObserveDuration records the total send duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	m.sendDuration.Observe(d.Seconds())
}

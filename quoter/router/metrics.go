package router

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Quote outcomes reported on quoter_quotes_total
const (
	OutcomeSuccess  = "success"
	OutcomeNoRoute  = "no_route"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
)

// Metrics holds the quote pipeline's Prometheus collectors
type Metrics struct {
	quotes   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the collectors with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quoter_quotes_total",
			Help: "Quote requests by chain and outcome",
		}, []string{"chain", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quoter_quote_duration_seconds",
			Help:    "End to end quote pipeline latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"chain"}),
	}
	if reg != nil {
		reg.MustRegister(m.quotes, m.duration)
	}
	return m
}

func (m *Metrics) observe(chainLabel, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.quotes.WithLabelValues(chainLabel, outcome).Inc()
	m.duration.WithLabelValues(chainLabel).Observe(seconds)
}

// QuotesTotal exposes the counter for tests and dashboards
func (m *Metrics) QuotesTotal() *prometheus.CounterVec {
	return m.quotes
}

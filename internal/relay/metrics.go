package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeExecuted = "executed"
	outcomeFailed   = "failed"
	outcomeRejected = "rejected"
	outcomeSkipped  = "skipped"
)

// Measures groups the relay metrics.
var Measures = struct {
	Requests  *prometheus.CounterVec
	BatchSize prometheus.Histogram
	Refunded  prometheus.Counter
}{
	Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "custodian_relay_requests_total",
		Help: "Forward requests handled, by outcome.",
	}, []string{"outcome"}),
	BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "custodian_relay_batch_size",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
		Help:    "Number of requests per batch.",
	}),
	Refunded: prometheus.NewCounter(prometheus.CounterOpts{
		Name: "custodian_relay_refunded_requests_total",
		Help: "Skipped batch requests whose value went to the refund receiver.",
	}),
}

func init() {
	prometheus.MustRegister(Measures.Requests, Measures.BatchSize, Measures.Refunded)
}

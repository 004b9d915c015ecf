package remote

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for request outcomes.
const (
	outcomeOK     = "ok"
	outcomeFailed = "failed"
)

var (
	requestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qdevice_remote_request_seconds",
			Help:    "Agent request time from dial to final result, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qdevice_remote_requests_total",
			Help: "Total number of requests sent to executor agents.",
		},
		[]string{"op", "outcome"},
	)

	dialRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qdevice_remote_dial_retries_total",
			Help: "Total number of failed agent dial attempts that were retried.",
		},
	)
)

func init() {
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(dialRetries)

	for _, op := range []string{OpInit, OpExecute} {
		requestsTotal.WithLabelValues(op, outcomeOK)
		requestsTotal.WithLabelValues(op, outcomeFailed)
	}
}

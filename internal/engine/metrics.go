package engine

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for terminal job outcomes.
const (
	outcomeDone     = "done"
	outcomeCanceled = "canceled"
	outcomeFailed   = "failed"
)

// Metric label values for wait results.
const (
	waitCompleted = "completed"
	waitCanceled  = "canceled"
	waitTimeout   = "timeout"
	waitFailed    = "failed"
)

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qdevice_jobs_total",
			Help: "Total number of jobs that reached a terminal status.",
		},
		[]string{"status"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qdevice_queue_depth",
			Help: "Number of jobs waiting in the pending queue.",
		},
	)

	deviceStatusGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qdevice_device_status",
			Help: "Current device status (0 offline, 1 idle, 2 busy, 3 error, 4 maintenance).",
		},
	)

	executionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qdevice_job_execution_seconds",
			Help:    "Executor time per job, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	waitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qdevice_wait_total",
			Help: "Total number of job waits by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(jobsTotal)
	prometheus.MustRegister(queueDepth)
	prometheus.MustRegister(deviceStatusGauge)
	prometheus.MustRegister(executionDuration)
	prometheus.MustRegister(waitsTotal)

	for _, s := range []string{outcomeDone, outcomeCanceled, outcomeFailed} {
		jobsTotal.WithLabelValues(s)
	}
	for _, r := range []string{waitCompleted, waitCanceled, waitTimeout, waitFailed} {
		waitsTotal.WithLabelValues(r)
	}
}

package locktimer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	forwarded     prometheus.Counter
	filtered      prometheus.Counter
	dropped       prometheus.Counter
	rowsWritten   prometheus.Counter
	flushErrors   prometheus.Counter
	queueDepth    prometheus.Gauge
	flushDuration prometheus.Histogram
}

// newMetrics registers the collectors on reg. A nil reg leaves them
// unregistered, which is what tests and embedded uses usually want.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		forwarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: "locktimer",
			Name:      "samples_forwarded_total",
			Help:      "Acquisitions longer than one millisecond handed to the active sink.",
		}),
		filtered: f.NewCounter(prometheus.CounterOpts{
			Namespace: "locktimer",
			Name:      "samples_filtered_total",
			Help:      "Acquisitions discarded by the one millisecond filter.",
		}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "locktimer",
			Name:      "samples_dropped_total",
			Help:      "Samples discarded because the queue was full.",
		}),
		rowsWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: "locktimer",
			Name:      "rows_written_total",
			Help:      "CSV rows appended to log files.",
		}),
		flushErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "locktimer",
			Name:      "flush_errors_total",
			Help:      "Flush batches that failed to reach the log file.",
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "locktimer",
			Name:      "queue_depth",
			Help:      "Samples waiting for the flush loop.",
		}),
		flushDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "locktimer",
			Name:      "flush_duration_seconds",
			Help:      "Time spent writing one batch to the log file.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}
}

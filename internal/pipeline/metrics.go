package pipeline

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	documentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "protocorpus",
			Subsystem: "pipeline",
			Name:      "documents_total",
			Help:      "Documents processed, by task and final status.",
		},
		[]string{"task", "status"},
	)
	elementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "protocorpus",
			Subsystem: "pipeline",
			Name:      "elements_total",
			Help:      "Content elements seen by tasks, by result.",
		},
		[]string{"task", "result"},
	)
	documentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "protocorpus",
			Subsystem: "pipeline",
			Name:      "document_duration_seconds",
			Help:      "Time spent on one document.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"task"},
	)
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "protocorpus",
			Subsystem: "pipeline",
			Name:      "queue_depth",
			Help:      "Documents waiting for a worker.",
		},
	)
)

// RegisterMetrics registers the pipeline collectors with reg once per
// process.
func RegisterMetrics(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(documentsTotal, elementsTotal, documentDuration, queueDepth)
	})
}

func observeDocument(task string, status JobStatus, o Outcome, d time.Duration) {
	documentsTotal.WithLabelValues(task, string(status)).Inc()
	elementsTotal.WithLabelValues(task, "visited").Add(float64(o.Elements))
	elementsTotal.WithLabelValues(task, "changed").Add(float64(o.Changed))
	elementsTotal.WithLabelValues(task, "unrecognized").Add(float64(o.Unrecognized))
	documentDuration.WithLabelValues(task).Observe(d.Seconds())
}

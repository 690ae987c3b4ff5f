package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Training metrics. promauto registers them with the default registry.

var (
	// EdgesProcessed counts edges that went through the gradient kernel.
	EdgesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nodevec_edges_processed_total",
			Help: "Total number of edges processed by training workers",
		},
	)

	// EdgesDropped counts raw edges removed by the vocabulary filter.
	// OOV and down-sampled edges share the counter.
	EdgesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nodevec_edges_dropped_total",
			Help: "Total number of raw edges dropped as out-of-vocabulary or down-sampled",
		},
	)

	// JobsTotal counts jobs pushed onto the training queue.
	JobsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nodevec_jobs_total",
			Help: "Total number of jobs enqueued for training workers",
		},
	)

	// QueueDepth tracks the number of jobs waiting in the queue.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodevec_queue_depth",
			Help: "Number of jobs buffered between the producer and the workers",
		},
	)

	// Throughput is the edges/s of the last finished run.
	Throughput = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodevec_training_throughput",
			Help: "Edges per second of the most recent training run",
		},
	)

	// TrainingRuns counts runs by outcome ("completed", "failed").
	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodevec_training_runs_total",
			Help: "Total number of training runs by outcome",
		},
		[]string{"outcome"},
	)

	// TrainingDuration measures wall-clock time of training runs.
	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nodevec_training_duration_seconds",
			Help:    "Duration of training runs in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 1800, 3600},
		},
	)
)

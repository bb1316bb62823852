package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ghusers",
			Name:      "queue_depth",
			Help:      "Number of network jobs waiting in the serial queue.",
		},
	)

	JobsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ghusers",
			Name:      "queue_jobs_started_total",
			Help:      "Count of network jobs admitted by the serial queue.",
		},
	)

	ReleaseViolations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ghusers",
			Name:      "queue_release_violations_total",
			Help:      "Rejected releases of the admission token by a stale or repeated ticket.",
		},
	)

	TaskResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ghusers",
			Name:      "task_results_total",
			Help:      "Completed network tasks by task type and outcome kind.",
		},
		[]string{"task", "kind"},
	)

	TaskLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ghusers",
			Name:      "task_latency_seconds",
			Help:      "Time from task start to completion.",
		},
		[]string{"task"},
	)

	Connectivity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ghusers",
			Name:      "connectivity_established",
			Help:      "1 when the last network attempt suggested connectivity, 0 otherwise.",
		},
	)

	CacheMoves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ghusers",
			Name:      "cache_moves_total",
			Help:      "Atomic moves into the file cache by result.",
		},
		[]string{"result"},
	)

	ScratchSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ghusers",
			Name:      "cache_scratch_swept_total",
			Help:      "Stale scratch files removed by the background sweeper.",
		},
	)

	SubscriberDrops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ghusers",
			Name:      "connectivity_subscriber_drops_total",
			Help:      "Connectivity notifications dropped because a subscriber was not keeping up.",
		},
	)
)

// Register registers the ghusers metrics into the default registry.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(QueueDepth, JobsStarted, ReleaseViolations, TaskResults, TaskLatency, Connectivity, CacheMoves, ScratchSwept, SubscriberDrops)
	})
}

var registerOnce sync.Once

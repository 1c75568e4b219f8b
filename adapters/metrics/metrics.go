// Package metrics provides the Prometheus collectors emitted by the
// batch helpers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BatchMetrics collects throttler, request and queue metrics.
type BatchMetrics struct {
	registry *prometheus.Registry

	tasksStarted   prometheus.Counter
	tasksCompleted prometheus.Counter
	tasksFailed    prometheus.Counter
	tasksRunning   prometheus.Gauge
	taskDuration   prometheus.Histogram

	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	queueSize *prometheus.GaugeVec
}

// NewBatchMetrics creates a collector registered on its own registry.
func NewBatchMetrics(namespace string) *BatchMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &BatchMetrics{
		registry: registry,
		tasksStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttler_tasks_started_total",
			Help:      "Total number of tasks started by the throttler",
		}),
		tasksCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttler_tasks_completed_total",
			Help:      "Total number of tasks that settled successfully",
		}),
		tasksFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttler_tasks_failed_total",
			Help:      "Total number of tasks that settled with a failure",
		}),
		tasksRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "throttler_tasks_running",
			Help:      "Current number of running tasks",
		}),
		taskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "throttler_task_duration_seconds",
			Help:      "Run time of throttled tasks",
			Buckets:   prometheus.DefBuckets,
		}),
		requestCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of remote boundary requests",
		}, []string{"operation", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of remote boundary requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		queueSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upload_queue_size",
			Help:      "Current number of buffered upload items",
		}, []string{"queue"}),
	}
}

// Registry exposes the underlying registry for scrape handlers.
func (m *BatchMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// TaskStarted implements throttle.Observer.
func (m *BatchMetrics) TaskStarted() {
	m.tasksStarted.Inc()
	m.tasksRunning.Inc()
}

// TaskSettled implements throttle.Observer.
func (m *BatchMetrics) TaskSettled(d time.Duration, err error) {
	m.tasksRunning.Dec()
	m.taskDuration.Observe(d.Seconds())
	if err != nil {
		m.tasksFailed.Inc()
		return
	}
	m.tasksCompleted.Inc()
}

// ObserveRequest records the outcome of one remote boundary request.
func (m *BatchMetrics) ObserveRequest(operation, status string, d time.Duration) {
	m.requestCount.WithLabelValues(operation, status).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// SetQueueSize records the current size of a named upload queue.
func (m *BatchMetrics) SetQueueSize(queue string, size int) {
	m.queueSize.WithLabelValues(queue).Set(float64(size))
}

package throttle

import (
	"time"

	"github.com/abhissng/cortex/adapters/log"
	"golang.org/x/time/rate"
)

const defaultQueueSize = 1000

// Option is a functional option type for configuring the TaskThrottler.
type Option func(*TaskThrottler)

// WithMaxParallelism bounds the number of concurrently running tasks.
// Zero or negative means unbounded.
func WithMaxParallelism(n int) Option {
	return func(t *TaskThrottler) {
		t.maxParallelism = n
	}
}

// WithPerUnit caps how many tasks may start per time window. Starts are
// spread evenly across the window rather than bursting then idling: at
// most one task starts per window/count sub-window.
func WithPerUnit(count int, window time.Duration) Option {
	return func(t *TaskThrottler) {
		if count <= 0 || window <= 0 {
			t.limiter = nil
			return
		}
		t.limiter = rate.NewLimiter(rate.Limit(float64(count)/window.Seconds()), 1)
	}
}

// WithQuitOnFailure stops admitting new work as soon as any task faults.
// Tasks already running are still drained by WaitForCompletion, which
// then returns an aggregate failure.
func WithQuitOnFailure() Option {
	return func(t *TaskThrottler) {
		t.quitOnFailure = true
	}
}

// WithResultPruning drops settled task results older than age from the
// internal bookkeeping. Without it, full history is retained.
func WithResultPruning(age time.Duration) Option {
	return func(t *TaskThrottler) {
		t.pruneAge = age
	}
}

// WithQueueSize sets the capacity of the input queue.
func WithQueueSize(size int) Option {
	return func(t *TaskThrottler) {
		if size > 0 {
			t.queue = make(chan *task, size)
		}
	}
}

// WithLogger sets the logger used for task lifecycle events.
func WithLogger(logger *log.Log) Option {
	return func(t *TaskThrottler) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithObserver installs a task lifecycle observer, typically a metrics
// collector.
func WithObserver(obs Observer) Option {
	return func(t *TaskThrottler) {
		t.observer = obs
	}
}

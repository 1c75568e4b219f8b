// Package throttle provides a bounded-concurrency, optionally
// rate-limited scheduler for deferred asynchronous operations.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Generator is a deferred unit of work. The throttler invokes it once,
// on its own goroutine, with the throttler's context. A panic inside the
// generator settles the task as faulted, exactly like a returned error.
type Generator func(ctx context.Context) error

// TaskResult records the outcome of one scheduled task. Index is
// assigned at enqueue time and is strictly increasing; sorting results
// by Index recovers submission order regardless of completion order.
type TaskResult struct {
	// Index is the submission index, assigned under lock at enqueue.
	Index int
	// StartTime is when the task was launched; zero if it never ran.
	StartTime time.Time
	// CompletionTime is set exactly once, when the task settles.
	CompletionTime time.Time
	// Err holds the failure the task settled with, nil on success.
	Err error
}

// Completed reports whether the task has settled.
func (r TaskResult) Completed() bool {
	return !r.CompletionTime.IsZero()
}

// Duration returns the task's run time, or 0 if it never started or has
// not settled.
func (r TaskResult) Duration() time.Duration {
	if r.StartTime.IsZero() || r.CompletionTime.IsZero() {
		return 0
	}
	return r.CompletionTime.Sub(r.StartTime)
}

var (
	// ErrNilGenerator is returned when a nil generator is enqueued.
	ErrNilGenerator = errors.New("throttle: nil generator")
	// ErrClosed is returned when enqueueing after WaitForCompletion.
	ErrClosed = errors.New("throttle: throttler is closed")
	// ErrAborted settles tasks that were still queued when the
	// scheduler stopped admitting work after a failure.
	ErrAborted = errors.New("throttle: task aborted after earlier failure")
)

// task is the internal bookkeeping unit tracked by the scheduler.
type task struct {
	gen    Generator
	result *TaskResult
	done   chan struct{}
}

// runGenerator invokes the generator, converting a panic into an error
// so a synchronous throw settles the task like any other fault.
func runGenerator(ctx context.Context, gen Generator) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("throttle: task panic: %v", r)
		}
	}()
	return gen(ctx)
}

// Observer receives task lifecycle notifications, typically for metrics.
type Observer interface {
	// TaskStarted is called when a task is launched.
	TaskStarted()
	// TaskSettled is called when a launched task settles, with its run
	// time and the error it settled with, if any.
	TaskSettled(d time.Duration, err error)
}

// Package uploader buffers items and uploads them in batches, flushing
// on size or on a timer, whichever triggers first.
package uploader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/abhissng/cortex/adapters/log"
)

// ErrQueueClosed is returned when items are added after Stop.
var ErrQueueClosed = errors.New("uploader: queue is closed")

// Handler uploads one batch. Returning an error keeps the batch queued
// for the next flush, up to the configured retry cap.
type Handler[T any] func(ctx context.Context, batch []T) error

// SizeReporter receives the queue length after each change. The metrics
// package's BatchMetrics satisfies this through a small adapter.
type SizeReporter func(size int)

// Queue accumulates items and hands them to a Handler in batches.
type Queue[T any] struct {
	handler    Handler[T]
	maxSize    int
	interval   time.Duration
	maxRetries int
	logger     *log.Log
	reporter   SizeReporter

	mu       sync.Mutex
	buffer   []T
	failures int
	closed   bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	kickCh   chan struct{}
}

// Option is a functional option type for configuring the Queue.
type Option[T any] func(*Queue[T])

// WithMaxSize sets the batch size that triggers an immediate flush.
func WithMaxSize[T any](size int) Option[T] {
	return func(q *Queue[T]) {
		if size > 0 {
			q.maxSize = size
		}
	}
}

// WithInterval sets the maximum time between flushes.
func WithInterval[T any](interval time.Duration) Option[T] {
	return func(q *Queue[T]) {
		if interval > 0 {
			q.interval = interval
		}
	}
}

// WithMaxRetries caps consecutive failed flushes before the buffered
// batch is dropped.
func WithMaxRetries[T any](retries int) Option[T] {
	return func(q *Queue[T]) {
		if retries >= 0 {
			q.maxRetries = retries
		}
	}
}

// WithQueueLogger sets the logger.
func WithQueueLogger[T any](logger *log.Log) Option[T] {
	return func(q *Queue[T]) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithSizeReporter registers a callback invoked with the buffered count
// after every add and flush.
func WithSizeReporter[T any](reporter SizeReporter) Option[T] {
	return func(q *Queue[T]) {
		q.reporter = reporter
	}
}

// NewQueue creates an upload queue for the given handler.
func NewQueue[T any](handler Handler[T], opts ...Option[T]) *Queue[T] {
	q := &Queue[T]{
		handler:    handler,
		maxSize:    1000,
		interval:   10 * time.Second,
		maxRetries: 3,
		logger:     log.NewNop(),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		kickCh:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Add buffers one item. When the buffer reaches the configured size the
// background loop is nudged to flush.
func (q *Queue[T]) Add(item T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.buffer = append(q.buffer, item)
	full := len(q.buffer) >= q.maxSize
	size := len(q.buffer)
	q.mu.Unlock()

	q.report(size)
	if full {
		select {
		case q.kickCh <- struct{}{}:
		default:
		}
	}
	return nil
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buffer)
}

// Start launches the background flush loop.
func (q *Queue[T]) Start(ctx context.Context) {
	go func() {
		defer close(q.doneCh)
		ticker := time.NewTicker(q.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				q.flush(ctx)
			case <-q.kickCh:
				q.flush(ctx)
				ticker.Reset(q.interval)
			case <-ctx.Done():
				return
			case <-q.stopCh:
				return
			}
		}
	}()
}

// Stop closes the queue, halts the loop and flushes remaining items.
func (q *Queue[T]) Stop(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.stopOnce.Do(func() {
		close(q.stopCh)
	})
	<-q.doneCh
	return q.flush(ctx)
}

func (q *Queue[T]) flush(ctx context.Context) error {
	q.mu.Lock()
	if len(q.buffer) == 0 {
		q.mu.Unlock()
		return nil
	}
	batch := q.buffer
	q.mu.Unlock()

	err := q.handler(ctx, batch)

	q.mu.Lock()
	if err != nil {
		q.failures++
		if q.failures > q.maxRetries {
			q.logger.Error("dropping batch after repeated upload failures",
				log.Int("items", len(batch)),
				log.Int("attempts", q.failures),
				log.Err(err))
			q.buffer = q.buffer[len(batch):]
			q.failures = 0
		} else {
			q.logger.Warn("batch upload failed, will retry",
				log.Int("items", len(batch)),
				log.Int("attempt", q.failures),
				log.Err(err))
		}
	} else {
		q.buffer = q.buffer[len(batch):]
		q.failures = 0
	}
	size := len(q.buffer)
	q.mu.Unlock()

	q.report(size)
	return err
}

func (q *Queue[T]) report(size int) {
	if q.reporter != nil {
		q.reporter(size)
	}
}

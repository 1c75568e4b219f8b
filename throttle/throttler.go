package throttle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abhissng/cortex/adapters/log"
	"golang.org/x/time/rate"
)

// TaskThrottler runs enqueued generators with bounded parallelism and an
// optional cap on how many tasks may start per time window. A single
// scheduler goroutine owns admission control; task bodies run as
// independent goroutines and report back through a completion signal.
type TaskThrottler struct {
	maxParallelism int
	limiter        *rate.Limiter
	quitOnFailure  bool
	pruneAge       time.Duration
	logger         *log.Log
	observer       Observer

	ctx context.Context

	queue    chan *task
	closeCh  chan struct{}
	taskDone chan struct{}
	loopDone chan struct{}

	// mu guards the small struct of mutable scheduler state below.
	mu        sync.Mutex
	nextIndex int
	running   int
	results   []*TaskResult
	failed    bool
	closed    bool
}

// NewTaskThrottler creates a throttler and starts its scheduler loop.
// The context governs every blocking wait: when it is cancelled the
// loop exits without draining outstanding tasks.
func NewTaskThrottler(ctx context.Context, opts ...Option) *TaskThrottler {
	t := &TaskThrottler{
		ctx:      ctx,
		queue:    make(chan *task, defaultQueueSize),
		closeCh:  make(chan struct{}),
		taskDone: make(chan struct{}, 1),
		loopDone: make(chan struct{}),
		logger:   log.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	go t.run()
	return t
}

// EnqueueTask schedules a deferred operation for eventual execution and
// returns without waiting for it to run.
func (t *TaskThrottler) EnqueueTask(gen Generator) error {
	_, err := t.enqueue(gen)
	return err
}

// EnqueueAndWait schedules a deferred operation and blocks until that
// specific task settles, returning its result. When the throttler is
// configured to quit on failure and this task faulted, the fault is
// returned as the error.
func (t *TaskThrottler) EnqueueAndWait(ctx context.Context, gen Generator) (*TaskResult, error) {
	tk, err := t.enqueue(gen)
	if err != nil {
		return nil, err
	}

	select {
	case <-tk.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// The task settled before done was closed; the result is stable now.
	res := *tk.result
	if t.quitOnFailure && res.Err != nil {
		return &res, res.Err
	}
	return &res, nil
}

// WaitForCompletion closes the input queue, waits for all queued and
// in-flight tasks to finish, and returns every recorded result in
// submission order. When quit-on-failure is set and any task faulted, an
// aggregate failure is returned alongside the results. Callers must not
// enqueue or cancel concurrently with this call.
func (t *TaskThrottler) WaitForCompletion(ctx context.Context) ([]TaskResult, error) {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.closeCh)
	}
	t.mu.Unlock()

	select {
	case <-t.loopDone:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Drain whatever is still running. The scheduler loop has exited, so
	// this is the only consumer of the completion signal.
	for {
		t.mu.Lock()
		running := t.running
		t.mu.Unlock()
		if running == 0 {
			break
		}
		select {
		case <-t.taskDone:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	t.mu.Lock()
	out := make([]TaskResult, 0, len(t.results))
	var faults []error
	for _, r := range t.results {
		out = append(out, *r)
		if r.Err != nil {
			faults = append(faults, fmt.Errorf("task %d: %w", r.Index, r.Err))
		}
	}
	t.mu.Unlock()

	if t.quitOnFailure && len(faults) > 0 {
		return out, errors.Join(faults...)
	}
	return out, nil
}

func (t *TaskThrottler) enqueue(gen Generator) (*task, error) {
	if gen == nil {
		return nil, ErrNilGenerator
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	tk := &task{
		gen:    gen,
		result: &TaskResult{Index: t.nextIndex},
		done:   make(chan struct{}),
	}
	t.nextIndex++
	t.results = append(t.results, tk.result)
	t.mu.Unlock()

	select {
	case t.queue <- tk:
		return tk, nil
	case <-t.ctx.Done():
		// The task never entered the queue; drop its bookkeeping so
		// WaitForCompletion does not report a result that can never
		// settle.
		t.mu.Lock()
		for i, r := range t.results {
			if r == tk.result {
				t.results = append(t.results[:i], t.results[i+1:]...)
				break
			}
		}
		t.mu.Unlock()
		return nil, t.ctx.Err()
	}
}

// run is the scheduler loop. It owns all admission decisions.
func (t *TaskThrottler) run() {
	defer close(t.loopDone)

	for {
		tk, ok := t.nextTask()
		if !ok {
			break
		}

		if err := t.waitForSlot(); err != nil {
			t.settleUnrun(tk, err)
			t.drainQueue(err)
			return
		}

		if t.limiter != nil {
			if err := t.limiter.Wait(t.ctx); err != nil {
				t.settleUnrun(tk, err)
				t.drainQueue(err)
				return
			}
			// A fault may have been observed during the rate wait; the
			// admitted task must not launch after it.
			if t.quitOnFailure && t.isFailed() {
				t.settleUnrun(tk, ErrAborted)
				t.drainQueue(ErrAborted)
				return
			}
		}

		t.launch(tk)
	}

	if t.ctx.Err() != nil {
		t.drainQueue(t.ctx.Err())
	}
}

// nextTask blocks until a generator is available. It returns false when
// the queue is closed and empty, or on cancellation.
func (t *TaskThrottler) nextTask() (*task, bool) {
	select {
	case tk := <-t.queue:
		return tk, true
	case <-t.ctx.Done():
		return nil, false
	case <-t.closeCh:
		// Closed: drain the backlog without blocking.
		select {
		case tk := <-t.queue:
			return tk, true
		default:
			return nil, false
		}
	}
}

// waitForSlot blocks until admission is allowed. It returns ErrAborted
// when quit-on-failure is set and a fault has been observed, or the
// context error on cancellation.
func (t *TaskThrottler) waitForSlot() error {
	for {
		t.mu.Lock()
		failed := t.failed
		allowed := t.allowSchedule()
		t.mu.Unlock()

		if t.quitOnFailure && failed {
			return ErrAborted
		}
		if allowed {
			return nil
		}

		select {
		case <-t.taskDone:
		case <-t.ctx.Done():
			return t.ctx.Err()
		}
	}
}

func (t *TaskThrottler) isFailed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}

// allowSchedule reports whether the parallelism bound admits another
// task. Callers hold mu. Rate admission is handled by the limiter.
func (t *TaskThrottler) allowSchedule() bool {
	return t.maxParallelism <= 0 || t.running < t.maxParallelism
}

func (t *TaskThrottler) launch(tk *task) {
	t.mu.Lock()
	t.running++
	tk.result.StartTime = time.Now()
	index := tk.result.Index
	t.mu.Unlock()

	t.logger.Debug("task started", log.Int("index", index))
	if t.observer != nil {
		t.observer.TaskStarted()
	}

	go func() {
		err := runGenerator(t.ctx, tk.gen)
		t.settle(tk, err)
	}()
}

// settle records the outcome of a task that ran, wakes the scheduler and
// any waiter, and prunes aged-out results.
func (t *TaskThrottler) settle(tk *task, err error) {
	t.mu.Lock()
	tk.result.Err = err
	tk.result.CompletionTime = time.Now()
	t.running--
	if err != nil {
		t.failed = true
	}
	t.prune()
	t.mu.Unlock()

	if err != nil {
		t.logger.Warn("task failed",
			log.Int("index", tk.result.Index), log.Err(err))
	}
	if t.observer != nil {
		t.observer.TaskSettled(tk.result.Duration(), err)
	}

	close(tk.done)
	t.signalDone()
}

// settleUnrun marks a task that was admitted from the queue but never
// launched.
func (t *TaskThrottler) settleUnrun(tk *task, err error) {
	t.mu.Lock()
	tk.result.Err = err
	tk.result.CompletionTime = time.Now()
	t.mu.Unlock()

	close(tk.done)
	t.signalDone()
}

// drainQueue settles everything still queued after the scheduler stopped
// admitting work.
func (t *TaskThrottler) drainQueue(err error) {
	for {
		select {
		case tk := <-t.queue:
			t.settleUnrun(tk, err)
		default:
			return
		}
	}
}

// signalDone performs a non-blocking completion signal. State is always
// updated before signalling, so a dropped signal means a wakeup is
// already pending and the waiter will re-check.
func (t *TaskThrottler) signalDone() {
	select {
	case t.taskDone <- struct{}{}:
	default:
	}
}

// prune drops settled results older than the configured retention age.
// Callers hold mu. With no retention age configured, full history is
// kept for WaitForCompletion. Under quit-on-failure, faulted results are
// never pruned: WaitForCompletion derives the aggregate failure from the
// surviving records.
func (t *TaskThrottler) prune() {
	if t.pruneAge <= 0 {
		return
	}
	cutoff := time.Now().Add(-t.pruneAge)
	kept := t.results[:0]
	for _, r := range t.results {
		if r.CompletionTime.IsZero() || r.CompletionTime.After(cutoff) {
			kept = append(kept, r)
			continue
		}
		if t.quitOnFailure && r.Err != nil {
			kept = append(kept, r)
		}
	}
	t.results = kept
}

package throttle_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhissng/cortex/throttle"
)

func TestEnqueueAndWaitRunsTask(t *testing.T) {
	throttler := throttle.NewTaskThrottler(context.Background())

	ran := false
	res, err := throttler.EnqueueAndWait(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.True(t, ran)
	assert.True(t, res.Completed())
	assert.NoError(t, res.Err)
	assert.Equal(t, 0, res.Index)

	_, err = throttler.WaitForCompletion(context.Background())
	require.NoError(t, err)
}

func TestEnqueueNilGenerator(t *testing.T) {
	throttler := throttle.NewTaskThrottler(context.Background())

	err := throttler.EnqueueTask(nil)
	assert.ErrorIs(t, err, throttle.ErrNilGenerator)

	_, err = throttler.WaitForCompletion(context.Background())
	require.NoError(t, err)
}

func TestEnqueueAfterWaitForCompletion(t *testing.T) {
	throttler := throttle.NewTaskThrottler(context.Background())

	_, err := throttler.WaitForCompletion(context.Background())
	require.NoError(t, err)

	err = throttler.EnqueueTask(func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, throttle.ErrClosed)
}

func TestParallelismBound(t *testing.T) {
	const limit = 3
	throttler := throttle.NewTaskThrottler(context.Background(),
		throttle.WithMaxParallelism(limit))

	var running, peak int64
	for i := 0; i < 20; i++ {
		err := throttler.EnqueueTask(func(ctx context.Context) error {
			now := atomic.AddInt64(&running, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if now <= old || atomic.CompareAndSwapInt64(&peak, old, now) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&running, -1)
			return nil
		})
		require.NoError(t, err)
	}

	results, err := throttler.WaitForCompletion(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 20)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(limit))
}

func TestRateLimitSpreadsStarts(t *testing.T) {
	// 2 starts per 100ms means the 5th start cannot happen before ~150ms.
	throttler := throttle.NewTaskThrottler(context.Background(),
		throttle.WithPerUnit(2, 100*time.Millisecond))

	begin := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, throttler.EnqueueTask(func(ctx context.Context) error {
			return nil
		}))
	}

	results, err := throttler.WaitForCompletion(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 5)

	var last time.Time
	for _, r := range results {
		if r.StartTime.After(last) {
			last = r.StartTime
		}
	}
	assert.GreaterOrEqual(t, last.Sub(begin), 150*time.Millisecond)
}

func TestResultsInSubmissionOrder(t *testing.T) {
	throttler := throttle.NewTaskThrottler(context.Background(),
		throttle.WithMaxParallelism(4))

	for i := 0; i < 50; i++ {
		require.NoError(t, throttler.EnqueueTask(func(ctx context.Context) error {
			return nil
		}))
	}

	results, err := throttler.WaitForCompletion(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 50)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.True(t, r.Completed())
	}
}

func TestQuitOnFailureAbortsQueuedTasks(t *testing.T) {
	throttler := throttle.NewTaskThrottler(context.Background(),
		throttle.WithMaxParallelism(1),
		throttle.WithQuitOnFailure())

	boom := errors.New("boom")
	var ranAfterFailure int64

	require.NoError(t, throttler.EnqueueTask(func(ctx context.Context) error {
		return boom
	}))
	for i := 0; i < 5; i++ {
		require.NoError(t, throttler.EnqueueTask(func(ctx context.Context) error {
			atomic.AddInt64(&ranAfterFailure, 1)
			return nil
		}))
	}

	results, err := throttler.WaitForCompletion(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, results, 6)
	assert.EqualValues(t, 0, atomic.LoadInt64(&ranAfterFailure))

	aborted := 0
	for _, r := range results[1:] {
		if errors.Is(r.Err, throttle.ErrAborted) {
			aborted++
		}
	}
	assert.Equal(t, 5, aborted)
}

func TestFailuresKeptWithoutQuitOnFailure(t *testing.T) {
	throttler := throttle.NewTaskThrottler(context.Background())

	boom := errors.New("boom")
	require.NoError(t, throttler.EnqueueTask(func(ctx context.Context) error {
		return boom
	}))
	require.NoError(t, throttler.EnqueueTask(func(ctx context.Context) error {
		return nil
	}))

	results, err := throttler.WaitForCompletion(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, boom)
	assert.NoError(t, results[1].Err)
}

func TestPanicBecomesTaskFailure(t *testing.T) {
	throttler := throttle.NewTaskThrottler(context.Background())

	res, err := throttler.EnqueueAndWait(context.Background(), func(ctx context.Context) error {
		panic("kaboom")
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "kaboom")

	_, err = throttler.WaitForCompletion(context.Background())
	require.NoError(t, err)
}

func TestContextCancellationStopsScheduling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	throttler := throttle.NewTaskThrottler(ctx,
		throttle.WithMaxParallelism(1))

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, throttler.EnqueueTask(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	require.NoError(t, throttler.EnqueueTask(func(ctx context.Context) error {
		return nil
	}))

	<-started
	cancel()
	// Give the scheduler time to observe the cancellation before the
	// running task settles and frees a slot.
	time.Sleep(20 * time.Millisecond)
	close(release)

	results, err := throttler.WaitForCompletion(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, context.Canceled)
}

func TestPrunedFaultStillAggregated(t *testing.T) {
	throttler := throttle.NewTaskThrottler(context.Background(),
		throttle.WithQuitOnFailure(),
		throttle.WithResultPruning(time.Nanosecond))

	boom := errors.New("boom")
	require.NoError(t, throttler.EnqueueTask(func(ctx context.Context) error {
		return boom
	}))
	// The success settles well after the fault has aged out, so its
	// settle triggers a prune pass over the faulted record.
	require.NoError(t, throttler.EnqueueTask(func(ctx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		return nil
	}))

	results, err := throttler.WaitForCompletion(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	kept := false
	for _, r := range results {
		if errors.Is(r.Err, boom) {
			kept = true
		}
	}
	assert.True(t, kept)
}

func TestFailedEnqueueLeavesNoOrphanResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	throttler := throttle.NewTaskThrottler(ctx,
		throttle.WithMaxParallelism(1),
		throttle.WithQueueSize(1))

	started := make(chan struct{})
	release := make(chan struct{})
	// Occupies the only slot so the scheduler stops draining the queue.
	require.NoError(t, throttler.EnqueueTask(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	// One task held by the scheduler waiting for a slot, one filling the
	// queue buffer.
	require.NoError(t, throttler.EnqueueTask(func(ctx context.Context) error { return nil }))
	require.NoError(t, throttler.EnqueueTask(func(ctx context.Context) error { return nil }))

	// The fourth enqueue blocks on the full queue until cancellation.
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err := throttler.EnqueueTask(func(ctx context.Context) error { return nil })
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	results, err := throttler.WaitForCompletion(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.Completed(), "task %d never settled", r.Index)
	}
}

func TestFaultDuringRateWaitAbortsAdmittedTask(t *testing.T) {
	throttler := throttle.NewTaskThrottler(context.Background(),
		throttle.WithQuitOnFailure(),
		throttle.WithPerUnit(1, 200*time.Millisecond))

	boom := errors.New("boom")
	var ran int64

	require.NoError(t, throttler.EnqueueTask(func(ctx context.Context) error {
		return boom
	}))
	// Admitted while the first task is still in flight, then held by the
	// rate limiter long enough for the fault to land.
	require.NoError(t, throttler.EnqueueTask(func(ctx context.Context) error {
		atomic.AddInt64(&ran, 1)
		return nil
	}))

	results, err := throttler.WaitForCompletion(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 0, atomic.LoadInt64(&ran))
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[1].Err, throttle.ErrAborted)
}

func TestResultPruning(t *testing.T) {
	throttler := throttle.NewTaskThrottler(context.Background(),
		throttle.WithResultPruning(time.Nanosecond))

	for i := 0; i < 10; i++ {
		res, err := throttler.EnqueueAndWait(context.Background(), func(ctx context.Context) error {
			return nil
		})
		require.NoError(t, err)
		require.NotNil(t, res)
	}
	time.Sleep(time.Millisecond)

	results, err := throttler.WaitForCompletion(context.Background())
	require.NoError(t, err)
	assert.Less(t, len(results), 10)
}

type countingObserver struct {
	mu      sync.Mutex
	started int
	settled int
	failed  int
}

func (o *countingObserver) TaskStarted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *countingObserver) TaskSettled(d time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settled++
	if err != nil {
		o.failed++
	}
}

func TestObserverSeesEveryTask(t *testing.T) {
	obs := &countingObserver{}
	throttler := throttle.NewTaskThrottler(context.Background(),
		throttle.WithObserver(obs))

	require.NoError(t, throttler.EnqueueTask(func(ctx context.Context) error { return nil }))
	require.NoError(t, throttler.EnqueueTask(func(ctx context.Context) error {
		return errors.New("boom")
	}))

	_, err := throttler.WaitForCompletion(context.Background())
	require.NoError(t, err)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 2, obs.started)
	assert.Equal(t, 2, obs.settled)
	assert.Equal(t, 1, obs.failed)
}

package uploader_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhissng/cortex/uploader"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]int
	fail    int
}

func (r *recorder) handle(ctx context.Context, batch []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail > 0 {
		r.fail--
		return errors.New("upload failed")
	}
	cp := make([]int, len(batch))
	copy(cp, batch)
	r.batches = append(r.batches, cp)
	return nil
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func TestQueueFlushesOnSize(t *testing.T) {
	rec := &recorder{}
	q := uploader.NewQueue(rec.handle,
		uploader.WithMaxSize[int](3),
		uploader.WithInterval[int](time.Hour))
	q.Start(context.Background())

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Add(i))
	}

	assert.Eventually(t, func() bool {
		return rec.total() == 3
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, q.Stop(context.Background()))
}

func TestQueueFlushesOnInterval(t *testing.T) {
	rec := &recorder{}
	q := uploader.NewQueue(rec.handle,
		uploader.WithMaxSize[int](1000),
		uploader.WithInterval[int](20*time.Millisecond))
	q.Start(context.Background())

	require.NoError(t, q.Add(1))
	require.NoError(t, q.Add(2))

	assert.Eventually(t, func() bool {
		return rec.total() == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, q.Stop(context.Background()))
}

func TestQueueStopFlushesRemaining(t *testing.T) {
	rec := &recorder{}
	q := uploader.NewQueue(rec.handle,
		uploader.WithMaxSize[int](1000),
		uploader.WithInterval[int](time.Hour))
	q.Start(context.Background())

	require.NoError(t, q.Add(1))
	require.NoError(t, q.Stop(context.Background()))

	assert.Equal(t, 1, rec.total())
	assert.Equal(t, 0, q.Len())

	err := q.Add(2)
	assert.ErrorIs(t, err, uploader.ErrQueueClosed)
}

func TestQueueRetriesFailedBatch(t *testing.T) {
	rec := &recorder{fail: 2}
	q := uploader.NewQueue(rec.handle,
		uploader.WithMaxSize[int](1000),
		uploader.WithInterval[int](10*time.Millisecond),
		uploader.WithMaxRetries[int](5))
	q.Start(context.Background())

	require.NoError(t, q.Add(7))

	assert.Eventually(t, func() bool {
		return rec.total() == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, q.Stop(context.Background()))
}

func TestQueueDropsBatchAfterRetryCap(t *testing.T) {
	rec := &recorder{fail: 100}
	q := uploader.NewQueue(rec.handle,
		uploader.WithMaxSize[int](1000),
		uploader.WithInterval[int](5*time.Millisecond),
		uploader.WithMaxRetries[int](2))
	q.Start(context.Background())

	require.NoError(t, q.Add(7))

	assert.Eventually(t, func() bool {
		return q.Len() == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, rec.total())

	_ = q.Stop(context.Background())
}

func TestQueueReportsSize(t *testing.T) {
	var mu sync.Mutex
	var sizes []int

	rec := &recorder{}
	q := uploader.NewQueue(rec.handle,
		uploader.WithMaxSize[int](2),
		uploader.WithInterval[int](time.Hour),
		uploader.WithSizeReporter[int](func(size int) {
			mu.Lock()
			sizes = append(sizes, size)
			mu.Unlock()
		}))
	q.Start(context.Background())

	require.NoError(t, q.Add(1))
	require.NoError(t, q.Add(2))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sizes) >= 3 && sizes[len(sizes)-1] == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, q.Stop(context.Background()))
}

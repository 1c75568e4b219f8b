package ensure

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/abhissng/cortex/result"
	"github.com/abhissng/cortex/throttle"
)

// runThrottled feeds one generator per chunk into a task throttler and
// merges the per-chunk results in chunk-submission order. Ordinary
// recoverable failures live inside the results; only cancellation and
// programming errors surface as the returned error.
func runThrottled[I, TItem, TErr any](
	ctx context.Context,
	cfg *Config,
	chunks [][]I,
	run func(ctx context.Context, chunk []I) *result.Result[TItem, TErr],
) (*result.Result[TItem, TErr], error) {
	if len(chunks) == 0 {
		return result.Empty[TItem, TErr](), nil
	}

	results := make([]*result.Result[TItem, TErr], len(chunks))
	throttler := throttle.NewTaskThrottler(ctx,
		throttle.WithMaxParallelism(cfg.ThrottleSize),
		throttle.WithLogger(cfg.Logger),
	)

	var completed atomic.Int64
	for i, chunk := range chunks {
		i, chunk := i, chunk
		err := throttler.EnqueueTask(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = run(ctx, chunk)
			if cfg.Progress != nil {
				cfg.Progress(int(completed.Add(1)))
			}
			return ctx.Err()
		})
		if err != nil {
			return nil, err
		}
	}

	if _, err := throttler.WaitForCompletion(ctx); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return result.MergeAll(results...), nil
}

// sleepCtx waits for d, returning false when the context fires first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

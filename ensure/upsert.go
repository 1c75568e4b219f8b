package ensure

import (
	"context"
	"errors"
	"strings"

	"github.com/abhissng/cortex/adapters/log"
	"github.com/abhissng/cortex/batch"
	"github.com/abhissng/cortex/core"
	"github.com/abhissng/cortex/fault"
	"github.com/abhissng/cortex/result"
	"github.com/abhissng/cortex/sanitize"
)

// Upsert writes create-or-update items in throttled fixed-size chunks,
// stripping and reporting rejected items per the configured retry mode.
// Sanitation runs over the whole input first and is reported as a
// separate leading pseudo-chunk. Optimistic-concurrency version
// conflicts are retried immediately, without backoff, up to a bounded
// number of rounds.
func Upsert[TItem, TUpdate any](
	ctx context.Context,
	ep UpsertEndpoint[TItem, TUpdate],
	items []TUpdate,
	opts ...Option,
) (*result.Result[TItem, TUpdate], error) {
	if ep.Upserter == nil {
		return nil, errors.New("ensure: endpoint missing upserter")
	}

	u := &upsertRunner[TItem, TUpdate]{ep: ep, cfg: NewConfig(opts...)}

	local := result.Empty[TItem, TUpdate]()
	if u.cfg.Sanitation != sanitize.None && ep.Sanitizer != nil {
		var errs []*fault.Error[TUpdate]
		items, errs = ep.Sanitizer(items, u.cfg.Sanitation)
		local.Errors = append(local.Errors, errs...)
	}

	chunks := batch.Chunk(items, u.cfg.ChunkSize)
	merged, err := runThrottled(ctx, u.cfg, chunks, u.upsertChunk)
	if err != nil {
		return nil, err
	}
	return local.Merge(merged), nil
}

type upsertRunner[TItem, TUpdate any] struct {
	ep  UpsertEndpoint[TItem, TUpdate]
	cfg *Config
}

// upsertChunk is the per-chunk write/classify/clean/retry loop.
func (u *upsertRunner[TItem, TUpdate]) upsertChunk(ctx context.Context, pending []TUpdate) *result.Result[TItem, TUpdate] {
	cleaner := batch.NewCleaner(u.ep.Accessors,
		batch.WithCompleter(u.ep.Completer),
		batch.WithCleanerLogger[TUpdate](u.cfg.Logger),
	)

	res := result.Empty[TItem, TUpdate]()
	conflictRounds := 0
	for len(pending) > 0 {
		if ctx.Err() != nil {
			return res
		}

		items, err := u.ep.Upserter.Upsert(ctx, pending)
		if err == nil {
			res.Items = append(res.Items, items...)
			return res
		}
		if ctx.Err() != nil {
			return res
		}

		// The boundary's own optimistic concurrency surfaces as a
		// version conflict; those resolve by immediately resubmitting.
		if isVersionConflict(err) && conflictRounds < u.cfg.MaxVersionConflictRetries {
			conflictRounds++
			u.cfg.Logger.Debug("version conflict, resubmitting",
				log.Int("round", conflictRounds))
			continue
		}

		classified := fault.Parse[TUpdate](err, u.ep.Kind)

		if classified.IsFatal() && u.cfg.RetryMode.retryFatal() {
			u.cfg.Logger.Warn("fatal failure, retrying batch",
				log.Int("pending", len(pending)), log.Err(err))
			if !sleepCtx(ctx, u.cfg.FatalRetryDelay) {
				return res
			}
			continue
		}

		res.AddError(classified)

		if classified.IsFatal() || !u.cfg.RetryMode.retryRecoverable() {
			classified.Skipped = append(classified.Skipped, pending...)
			return res
		}

		pending = cleaner.Clean(ctx, classified, pending)
	}
	return res
}

// isVersionConflict recognizes an optimistic-concurrency conflict
// response on an update.
func isVersionConflict(err error) bool {
	var apiErr *core.APIError
	return errors.As(err, &apiErr) &&
		apiErr.Status == 409 &&
		strings.HasPrefix(apiErr.Message, fault.PrefixVersionConflict)
}

package ensure

import (
	"context"
	"errors"

	"github.com/abhissng/cortex/adapters/log"
	"github.com/abhissng/cortex/batch"
	"github.com/abhissng/cortex/core"
	"github.com/abhissng/cortex/fault"
	"github.com/abhissng/cortex/result"
	"github.com/abhissng/cortex/sanitize"
)

// GetOrCreate retrieves the items named by ids from the remote boundary
// and creates the ones that do not exist, in throttled fixed-size
// chunks. The result pairs everything the caller ends up with (found
// plus newly created) with the classified errors accumulated on the way,
// in chunk-submission order. Recoverable failures never surface as the
// returned error; that is reserved for cancellation and misuse.
func GetOrCreate[TItem, TCreate any](
	ctx context.Context,
	ep Endpoint[TItem, TCreate],
	ids []core.Value,
	build BuildFunc[TCreate],
	opts ...Option,
) (*result.Result[TItem, TCreate], error) {
	if build == nil {
		return nil, errors.New("ensure: nil build function")
	}
	if ep.Retriever == nil || ep.Creator == nil || ep.ItemID == nil {
		return nil, errors.New("ensure: endpoint missing retriever, creator or item identity")
	}

	r := &runner[TItem, TCreate]{ep: ep, cfg: NewConfig(opts...), build: build}
	chunks := batch.Chunk(ids, r.cfg.ChunkSize)
	return runThrottled(ctx, r.cfg, chunks, r.getOrCreateChunk)
}

// EnsureExists writes the given items, stripping and reporting the ones
// the remote boundary rejects, according to the configured retry mode.
// Sanitation runs over the whole input first; its errors are reported as
// a separate leading pseudo-chunk.
func EnsureExists[TItem, TCreate any](
	ctx context.Context,
	ep Endpoint[TItem, TCreate],
	items []TCreate,
	opts ...Option,
) (*result.Result[TItem, TCreate], error) {
	if ep.Creator == nil {
		return nil, errors.New("ensure: endpoint missing creator")
	}

	r := &runner[TItem, TCreate]{ep: ep, cfg: NewConfig(opts...)}

	local := result.Empty[TItem, TCreate]()
	items = r.sanitizeInto(local, items)

	chunks := batch.Chunk(items, r.cfg.ChunkSize)
	merged, err := runThrottled(ctx, r.cfg, chunks, r.createChunk)
	if err != nil {
		return nil, err
	}
	return local.Merge(merged), nil
}

// runner carries one orchestrated run over a creatable endpoint.
type runner[TItem, TCreate any] struct {
	ep    Endpoint[TItem, TCreate]
	cfg   *Config
	build BuildFunc[TCreate]
}

// getOrCreateChunk runs the retrieve/build/create sequence for one chunk
// of identities, then resolves external-id conflicts by re-fetching the
// duplicated identities with exponential backoff. The conflict errors
// stay visible in the result.
func (r *runner[TItem, TCreate]) getOrCreateChunk(ctx context.Context, ids []core.Value) *result.Result[TItem, TCreate] {
	res := r.getOrCreateRound(ctx, ids)

	round := res
	for attempt := 0; r.cfg.RetryMode.keepDuplicates(); attempt++ {
		dups := duplicateValues(round.Errors)
		if len(dups) == 0 || attempt >= r.cfg.MaxDuplicateRetries {
			break
		}
		// Another writer won the race; give it time to finish, then
		// fetch what it created. Backoff doubles per attempt.
		if !sleepCtx(ctx, r.cfg.DuplicateBackoff<<attempt) {
			break
		}
		r.cfg.Logger.Debug("re-fetching duplicated items",
			log.Int("attempt", attempt), log.Int("count", len(dups)))

		round = r.getOrCreateRound(ctx, dups)
		res.Merge(round)
	}
	return res
}

// getOrCreateRound performs a single retrieve/build/create pass.
func (r *runner[TItem, TCreate]) getOrCreateRound(ctx context.Context, ids []core.Value) *result.Result[TItem, TCreate] {
	res := result.Empty[TItem, TCreate]()

	found, err := r.ep.Retriever.Retrieve(ctx, ids, true)
	if err != nil {
		res.AddError(fault.Parse[TCreate](err, r.ep.Kind))
		return res
	}
	res.Items = found

	missing := missingValues(ids, found, r.ep.ItemID)
	if len(missing) == 0 {
		return res
	}

	toCreate, err := r.build(ctx, missing)
	if err != nil {
		res.AddError(fault.Fatal[TCreate](err))
		return res
	}
	toCreate = r.sanitizeInto(res, toCreate)

	created, errs := r.createWithRetry(ctx, toCreate)
	res.Items = append(res.Items, created...)
	res.Errors = append(res.Errors, errs...)
	return res
}

// createChunk is the EnsureExists flavor: write one chunk with the
// retry loop, no retrieval.
func (r *runner[TItem, TCreate]) createChunk(ctx context.Context, items []TCreate) *result.Result[TItem, TCreate] {
	created, errs := r.createWithRetry(ctx, items)
	return result.New(created, errs...)
}

// sanitizeInto applies the endpoint sanitizer when configured, merging
// local validation errors into res.
func (r *runner[TItem, TCreate]) sanitizeInto(res *result.Result[TItem, TCreate], items []TCreate) []TCreate {
	if r.cfg.Sanitation == sanitize.None || r.ep.Sanitizer == nil {
		return items
	}
	cleaned, errs := r.ep.Sanitizer(items, r.cfg.Sanitation)
	res.Errors = append(res.Errors, errs...)
	return cleaned
}

// createWithRetry is the create inner loop: attempt the write; on
// failure classify, clean and retry with the shrunk batch until the
// batch is empty, a terminal condition is hit or the context fires.
// Fatal failures are retried with a constant delay only under the
// fatal retry modes.
func (r *runner[TItem, TCreate]) createWithRetry(ctx context.Context, pending []TCreate) ([]TItem, []*fault.Error[TCreate]) {
	cleaner := batch.NewCleaner(r.ep.Accessors,
		batch.WithCompleter(r.ep.Completer),
		batch.WithCleanerLogger[TCreate](r.cfg.Logger),
	)

	var (
		created []TItem
		errs    []*fault.Error[TCreate]
	)
	for len(pending) > 0 {
		if ctx.Err() != nil {
			return created, errs
		}

		items, err := r.ep.Creator.Create(ctx, pending)
		if err == nil {
			created = append(created, items...)
			return created, errs
		}
		if ctx.Err() != nil {
			return created, errs
		}

		classified := fault.Parse[TCreate](err, r.ep.Kind)

		if classified.IsFatal() && r.cfg.RetryMode.retryFatal() {
			r.cfg.Logger.Warn("fatal failure, retrying batch",
				log.Int("pending", len(pending)), log.Err(err))
			if !sleepCtx(ctx, r.cfg.FatalRetryDelay) {
				return created, errs
			}
			continue
		}

		errs = append(errs, classified)

		if classified.IsFatal() || !r.cfg.RetryMode.retryRecoverable() {
			// Terminal for this chunk: the remainder is dropped, not
			// retried, and recorded for caller visibility.
			classified.Skipped = append(classified.Skipped, pending...)
			return created, errs
		}

		pending = cleaner.Clean(ctx, classified, pending)
	}
	return created, errs
}

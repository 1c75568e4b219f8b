package batch

import (
	"context"

	"github.com/abhissng/cortex/adapters/log"
	"github.com/abhissng/cortex/core"
	"github.com/abhissng/cortex/fault"
	"github.com/abhissng/cortex/utils/cache"
)

// CompleteFunc expands a partial identity set. It receives the classified
// error and the pending batch and returns the full set of offending
// identities, typically by querying the remote boundary for which of the
// identities the batch references actually exist.
type CompleteFunc[T any] func(ctx context.Context, e *fault.Error[T], items []T) ([]core.Value, error)

const defaultCompletionCap = 3

// Cleaner strips the items implicated by a classified error out of a
// pending write batch. Identity extraction goes through an accessor
// table so the retry loop never switches on resource kinds itself.
type Cleaner[T any] struct {
	accessors     core.AccessorTable[T]
	complete      CompleteFunc[T]
	completionCap int
	logger        *log.Log

	completionFailures int
}

// NewCleaner creates a cleaner over the given accessor table.
func NewCleaner[T any](accessors core.AccessorTable[T], opts ...CleanerOption[T]) *Cleaner[T] {
	c := &Cleaner[T]{
		accessors:     accessors,
		completionCap: defaultCompletionCap,
		logger:        log.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CleanerOption configures a Cleaner.
type CleanerOption[T any] func(*Cleaner[T])

// WithCompleter installs the supplementary-lookup function used for
// errors whose identity set is known to be partial.
func WithCompleter[T any](fn CompleteFunc[T]) CleanerOption[T] {
	return func(c *Cleaner[T]) {
		c.complete = fn
	}
}

// WithCompletionCap bounds how many failed supplementary lookups are
// tolerated before the cleaner empties the batch to guarantee the retry
// loop terminates.
func WithCompletionCap[T any](cap int) CleanerOption[T] {
	return func(c *Cleaner[T]) {
		if cap > 0 {
			c.completionCap = cap
		}
	}
}

// WithCleanerLogger sets the cleaner's logger.
func WithCleanerLogger[T any](logger *log.Log) CleanerOption[T] {
	return func(c *Cleaner[T]) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Clean returns the batch with every item implicated by the error
// removed; removed items are recorded on the error's Skipped list. A nil
// error returns the batch unchanged. When no offending identities can be
// determined the whole batch is emptied so the caller's retry loop
// cannot spin forever.
func (c *Cleaner[T]) Clean(ctx context.Context, e *fault.Error[T], items []T) []T {
	if e == nil {
		return items
	}

	if !e.Complete {
		if !c.completeError(ctx, e, items) {
			if c.completionFailures < c.completionCap {
				// The lookup failed; leave the batch unfiltered and let
				// the caller's next round classify again.
				return items
			}
			c.logger.Warn("identity completion exhausted, dropping batch",
				log.Int("items", len(items)))
			return c.skipAll(e, items)
		}
	}

	if len(e.Values) == 0 {
		return c.skipAll(e, items)
	}

	accessor, ok := c.accessors[e.Resource]
	if !ok {
		// No way to match items against this resource field.
		return c.skipAll(e, items)
	}

	set := e.ValueSet()
	kept := make([]T, 0, len(items))
	for _, item := range items {
		if matches(accessor(item), set) {
			e.Skipped = append(e.Skipped, item)
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

// completeError runs the supplementary lookup and reports whether the
// identity set is now usable.
func (c *Cleaner[T]) completeError(ctx context.Context, e *fault.Error[T], items []T) bool {
	if c.complete == nil {
		c.completionFailures = c.completionCap
		return false
	}

	values, err := c.complete(ctx, e, items)
	if err != nil {
		c.completionFailures++
		c.logger.Warn("identity completion failed",
			log.Int("attempt", c.completionFailures), log.Err(err))
		return false
	}

	e.Values = values
	e.Complete = true
	return true
}

func (c *Cleaner[T]) skipAll(e *fault.Error[T], items []T) []T {
	e.Skipped = append(e.Skipped, items...)
	return nil
}

func matches(values []core.Value, set core.ValueSet) bool {
	for _, v := range values {
		if set.Contains(v) {
			return true
		}
	}
	return false
}

// NewExistenceCompleter builds a CompleteFunc that resolves which of the
// identities referenced by a batch are absent from the remote boundary.
// candidates extracts the referenced identities from the pending batch,
// refID the identity of a retrieved reference item. Known-existing
// identities are memoized in an LRU cache to keep repeated rounds cheap.
func NewExistenceCompleter[T, TRef any](
	retriever core.Retriever[TRef],
	candidates func(items []T) []core.Value,
	refID func(ref TRef) core.Value,
	cacheSize int,
) CompleteFunc[T] {
	known, _ := cache.NewLRUCache[core.Value, struct{}](cacheSize)

	return func(ctx context.Context, e *fault.Error[T], items []T) ([]core.Value, error) {
		wanted := core.NewValueSet(candidates(items)...)

		lookup := make([]core.Value, 0, len(wanted))
		for v := range wanted {
			if known == nil || !known.Contains(v) {
				lookup = append(lookup, v)
			}
		}

		if len(lookup) == 0 {
			// Everything referenced is already known to exist.
			return nil, nil
		}

		found, err := retriever.Retrieve(ctx, lookup, true)
		if err != nil {
			return nil, err
		}
		for _, ref := range found {
			if known != nil {
				known.Add(refID(ref), struct{}{})
			}
			delete(wanted, refID(ref))
		}
		// Drop cached hits that were skipped from the lookup.
		for v := range wanted {
			if known != nil && known.Contains(v) {
				delete(wanted, v)
			}
		}

		return wanted.Values(), nil
	}
}

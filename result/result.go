// Package result provides the accumulator pairing successfully processed
// items with the classified errors collected while processing a batch.
package result

import (
	"errors"

	"github.com/abhissng/cortex/fault"
)

// Result pairs the items a batch operation produced with the classified
// errors it accumulated. TItem is the output item type, TErr the write
// request type the errors pertain to. Two results from independent
// chunks merge by concatenating both lists; merging in chunk-submission
// order preserves item ordering.
type Result[TItem, TErr any] struct {
	Items  []TItem
	Errors []*fault.Error[TErr]
}

// New creates a result from items and any number of errors.
func New[TItem, TErr any](items []TItem, errs ...*fault.Error[TErr]) *Result[TItem, TErr] {
	return &Result[TItem, TErr]{Items: items, Errors: errs}
}

// Empty creates a result with no items and no errors.
func Empty[TItem, TErr any]() *Result[TItem, TErr] {
	return &Result[TItem, TErr]{}
}

// Merge appends the other result's items and errors to r. A nil other is
// a no-op. Returns r for chaining.
func (r *Result[TItem, TErr]) Merge(other *Result[TItem, TErr]) *Result[TItem, TErr] {
	if other == nil {
		return r
	}
	r.Items = append(r.Items, other.Items...)
	r.Errors = append(r.Errors, other.Errors...)
	return r
}

// MergeAll merges any number of results into a fresh one, in order.
func MergeAll[TItem, TErr any](results ...*Result[TItem, TErr]) *Result[TItem, TErr] {
	merged := Empty[TItem, TErr]()
	for _, r := range results {
		merged.Merge(r)
	}
	return merged
}

// AddError appends a classified error. A nil error is a no-op.
func (r *Result[TItem, TErr]) AddError(err *fault.Error[TErr]) {
	if err != nil {
		r.Errors = append(r.Errors, err)
	}
}

// IsAllGood reports whether the result carries no errors.
func (r *Result[TItem, TErr]) IsAllGood() bool {
	return len(r.Errors) == 0
}

// FirstError returns the first accumulated error, or nil.
func (r *Result[TItem, TErr]) FirstError() *fault.Error[TErr] {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// FatalError returns the first fatal error in the result, or nil when
// every accumulated error is recoverable.
func (r *Result[TItem, TErr]) FatalError() *fault.Error[TErr] {
	for _, e := range r.Errors {
		if e.IsFatal() {
			return e
		}
	}
	return nil
}

// ToError folds the accumulated errors into a single error, or nil when
// the result is clean.
func (r *Result[TItem, TErr]) ToError() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

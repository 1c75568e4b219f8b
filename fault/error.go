// Package fault provides the structured, resource-tagged interpretation
// of raw remote failures used by the batch retry helpers.
package fault

import (
	"fmt"

	"github.com/abhissng/cortex/core"
)

// Kind is the recoverability class of a classified error.
type Kind int

const (
	// FatalFailure marks transport errors and non-classifiable statuses.
	FatalFailure Kind = iota
	// ItemExists marks a conflict with an already existing item.
	ItemExists
	// ItemMissing marks a reference to an item that does not exist.
	ItemMissing
	// ItemDuplicated marks a duplicate detected locally before the write.
	ItemDuplicated
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case ItemExists:
		return "item-exists"
	case ItemMissing:
		return "item-missing"
	case ItemDuplicated:
		return "item-duplicated"
	default:
		return "fatal-failure"
	}
}

// Error is a classified remote failure. Resource names the identity
// field the offending Values refer to. Complete is false when the value
// set is known to be partial and must be expanded by a follow-up lookup
// before it can be used to filter a batch. Skipped collects the items a
// cleaner removed or gave up on because of this error.
type Error[T any] struct {
	Kind     Kind
	Resource core.Resource
	Values   []core.Value
	Complete bool
	Status   int
	Message  string
	Skipped  []T

	cause error
}

// New creates a classified error of the given kind. The value set is
// considered complete until marked otherwise.
func New[T any](kind Kind, message string) *Error[T] {
	return &Error[T]{
		Kind:     kind,
		Resource: core.ResourceNone,
		Complete: true,
		Message:  message,
	}
}

// Fatal wraps an unclassifiable failure.
func Fatal[T any](cause error) *Error[T] {
	e := New[T](FatalFailure, cause.Error())
	e.cause = cause
	return e
}

// Error implements the error interface.
func (e *Error[T]) Error() string {
	if e.Resource == core.ResourceNone {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Resource, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error[T]) Unwrap() error {
	return e.cause
}

// WithResource sets the resource tag and returns the updated error.
func (e *Error[T]) WithResource(r core.Resource) *Error[T] {
	e.Resource = r
	return e
}

// WithValues sets the offending identity set and returns the updated error.
func (e *Error[T]) WithValues(values ...core.Value) *Error[T] {
	e.Values = values
	return e
}

// WithStatus sets the raw status code and returns the updated error.
func (e *Error[T]) WithStatus(status int) *Error[T] {
	e.Status = status
	return e
}

// WithCause records the underlying error and returns the updated error.
func (e *Error[T]) WithCause(cause error) *Error[T] {
	e.cause = cause
	return e
}

// MarkIncomplete flags the value set as partial and returns the updated
// error. Cleaners must complete the set before filtering with it.
func (e *Error[T]) MarkIncomplete() *Error[T] {
	e.Complete = false
	return e
}

// ValueSet returns the offending identities as a membership set.
func (e *Error[T]) ValueSet() core.ValueSet {
	return core.NewValueSet(e.Values...)
}

// IsFatal reports whether the error is not recoverable by batch cleaning.
func (e *Error[T]) IsFatal() bool {
	return e.Kind == FatalFailure
}

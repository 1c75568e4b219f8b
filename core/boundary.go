package core

import (
	"context"
	"fmt"
	"strings"
)

// Retriever fetches existing items by identity from the remote boundary.
// When ignoreUnknown is set, unknown identities are silently omitted from
// the response instead of failing the whole request.
type Retriever[T any] interface {
	Retrieve(ctx context.Context, ids []Value, ignoreUnknown bool) ([]T, error)
}

// Creator writes new items to the remote boundary, returning the created
// server-side representations.
type Creator[TItem, TCreate any] interface {
	Create(ctx context.Context, items []TCreate) ([]TItem, error)
}

// Upserter writes create-or-update items to the remote boundary.
type Upserter[TItem, TUpdate any] interface {
	Upsert(ctx context.Context, items []TUpdate) ([]TItem, error)
}

// APIError is the structured failure shape returned by the remote
// boundary. Besides the status code and message it may carry typed lists
// of missing and duplicated descriptors, each a field-name to identity
// map.
type APIError struct {
	Status     int
	Message    string
	RequestID  string
	Missing    []map[string]Value
	Duplicated []map[string]Value
}

// Error implements the error interface.
func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "api error %d: %s", e.Status, e.Message)
	if e.RequestID != "" {
		fmt.Fprintf(&b, " (request id %s)", e.RequestID)
	}
	return b.String()
}

// ExtractField collects the identities stored under the given field name
// across a list of error descriptors.
func ExtractField(descriptors []map[string]Value, field string) []Value {
	var out []Value
	for _, d := range descriptors {
		if v, ok := d[field]; ok {
			out = append(out, v)
		}
	}
	return out
}

package ensure

import (
	"context"

	"github.com/abhissng/cortex/batch"
	"github.com/abhissng/cortex/core"
	"github.com/abhissng/cortex/fault"
	"github.com/abhissng/cortex/sanitize"
)

// BuildFunc constructs write requests for the identities that were not
// found on the remote boundary.
type BuildFunc[TCreate any] func(ctx context.Context, missing []core.Value) ([]TCreate, error)

// Endpoint bundles the remote capabilities and identity plumbing for one
// creatable resource type. Identity extraction is kept in the accessor
// table so no retry code switches on resource kinds.
type Endpoint[TItem, TCreate any] struct {
	// Kind selects the resource-specific error parser.
	Kind core.RequestKind
	// Retriever fetches existing items by identity.
	Retriever core.Retriever[TItem]
	// Creator writes new items.
	Creator core.Creator[TItem, TCreate]
	// ItemID returns the identity of a returned item.
	ItemID func(item TItem) core.Value
	// Accessors maps resource fields to identity extractors for write
	// items; the batch cleaner filters with it.
	Accessors core.AccessorTable[TCreate]
	// Sanitizer is the optional pre-flight sanitation function.
	Sanitizer sanitize.Func[TCreate]
	// Completer is the optional supplementary lookup for errors with a
	// partial identity set.
	Completer batch.CompleteFunc[TCreate]
}

// UpsertEndpoint bundles the remote capabilities for an updatable
// resource type.
type UpsertEndpoint[TItem, TUpdate any] struct {
	Kind      core.RequestKind
	Upserter  core.Upserter[TItem, TUpdate]
	Accessors core.AccessorTable[TUpdate]
	Sanitizer sanitize.Func[TUpdate]
	Completer batch.CompleteFunc[TUpdate]
}

// missingValues returns the requested identities that are not covered by
// the found items, preserving request order.
func missingValues[TItem any](requested []core.Value, found []TItem, id func(TItem) core.Value) []core.Value {
	have := make(core.ValueSet, len(found))
	for _, f := range found {
		have[id(f)] = struct{}{}
	}

	var missing []core.Value
	for _, v := range requested {
		if !have.Contains(v) {
			missing = append(missing, v)
		}
	}
	return missing
}

// duplicateValues collects the external ids named by item-exists
// conflicts in the given errors, deduplicated, in first-seen order.
func duplicateValues[T any](errs []*fault.Error[T]) []core.Value {
	seen := make(core.ValueSet)
	var out []core.Value
	for _, e := range errs {
		if e.Kind != fault.ItemExists || e.Resource != core.ResourceExternalID {
			continue
		}
		for _, v := range e.Values {
			if !seen.Contains(v) {
				seen[v] = struct{}{}
				out = append(out, v)
			}
		}
	}
	return out
}

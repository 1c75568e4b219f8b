package batch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhissng/cortex/batch"
	"github.com/abhissng/cortex/core"
	"github.com/abhissng/cortex/fault"
)

type event struct {
	ExternalID string
	AssetIDs   []int64
}

func eventAccessors() core.AccessorTable[event] {
	return core.AccessorTable[event]{
		core.ResourceExternalID: func(e event) []core.Value {
			return []core.Value{core.StringValue(e.ExternalID)}
		},
		core.ResourceAssetID: func(e event) []core.Value {
			out := make([]core.Value, 0, len(e.AssetIDs))
			for _, id := range e.AssetIDs {
				out = append(out, core.IntValue(id))
			}
			return out
		},
	}
}

func TestCleanNilErrorReturnsBatchUnchanged(t *testing.T) {
	cleaner := batch.NewCleaner(eventAccessors())
	items := []event{{ExternalID: "a"}, {ExternalID: "b"}}

	kept := cleaner.Clean(context.Background(), nil, items)
	assert.Equal(t, items, kept)
}

func TestCleanRemovesImplicatedItems(t *testing.T) {
	cleaner := batch.NewCleaner(eventAccessors())
	items := []event{{ExternalID: "a"}, {ExternalID: "b"}, {ExternalID: "c"}}

	e := fault.New[event](fault.ItemExists, "duplicates").
		WithResource(core.ResourceExternalID).
		WithValues(core.StringValue("b"))

	kept := cleaner.Clean(context.Background(), e, items)
	require.Len(t, kept, 2)
	assert.Equal(t, "a", kept[0].ExternalID)
	assert.Equal(t, "c", kept[1].ExternalID)
	require.Len(t, e.Skipped, 1)
	assert.Equal(t, "b", e.Skipped[0].ExternalID)
}

func TestCleanMatchesAnyValueOfMultiValuedField(t *testing.T) {
	cleaner := batch.NewCleaner(eventAccessors())
	items := []event{
		{ExternalID: "a", AssetIDs: []int64{1, 2}},
		{ExternalID: "b", AssetIDs: []int64{3}},
	}

	e := fault.New[event](fault.ItemMissing, "missing assets").
		WithResource(core.ResourceAssetID).
		WithValues(core.IntValue(2))

	kept := cleaner.Clean(context.Background(), e, items)
	require.Len(t, kept, 1)
	assert.Equal(t, "b", kept[0].ExternalID)
}

func TestCleanEmptyIdentitySetEmptiesBatch(t *testing.T) {
	cleaner := batch.NewCleaner(eventAccessors())
	items := []event{{ExternalID: "a"}, {ExternalID: "b"}}

	e := fault.New[event](fault.ItemMissing, "missing").
		WithResource(core.ResourceExternalID)

	kept := cleaner.Clean(context.Background(), e, items)
	assert.Empty(t, kept)
	assert.Len(t, e.Skipped, 2)
}

func TestCleanUnknownResourceEmptiesBatch(t *testing.T) {
	cleaner := batch.NewCleaner(eventAccessors())
	items := []event{{ExternalID: "a"}}

	e := fault.New[event](fault.ItemMissing, "missing").
		WithResource(core.ResourceDataSetID).
		WithValues(core.IntValue(9))

	kept := cleaner.Clean(context.Background(), e, items)
	assert.Empty(t, kept)
	assert.Len(t, e.Skipped, 1)
}

func TestCleanCompletesPartialIdentitySet(t *testing.T) {
	completer := func(ctx context.Context, e *fault.Error[event], items []event) ([]core.Value, error) {
		return []core.Value{core.StringValue("a")}, nil
	}
	cleaner := batch.NewCleaner(eventAccessors(),
		batch.WithCompleter(completer))

	items := []event{{ExternalID: "a"}, {ExternalID: "b"}}
	e := fault.New[event](fault.ItemMissing, "unknown parents").
		WithResource(core.ResourceExternalID).
		MarkIncomplete()

	kept := cleaner.Clean(context.Background(), e, items)
	require.Len(t, kept, 1)
	assert.Equal(t, "b", kept[0].ExternalID)
	assert.True(t, e.Complete)
}

func TestCleanCompletionFailureKeepsBatchUntilCap(t *testing.T) {
	calls := 0
	completer := func(ctx context.Context, e *fault.Error[event], items []event) ([]core.Value, error) {
		calls++
		return nil, errors.New("lookup down")
	}
	cleaner := batch.NewCleaner(eventAccessors(),
		batch.WithCompleter(completer),
		batch.WithCompletionCap[event](2))

	items := []event{{ExternalID: "a"}}

	// First two failures leave the batch unfiltered for another round.
	for i := 0; i < 2; i++ {
		e := fault.New[event](fault.ItemMissing, "unknown parents").
			WithResource(core.ResourceExternalID).
			MarkIncomplete()
		kept := cleaner.Clean(context.Background(), e, items)
		assert.Equal(t, items, kept)
		assert.Empty(t, e.Skipped)
	}

	// The cap is reached: the batch is dropped so the loop terminates.
	e := fault.New[event](fault.ItemMissing, "unknown parents").
		WithResource(core.ResourceExternalID).
		MarkIncomplete()
	kept := cleaner.Clean(context.Background(), e, items)
	assert.Empty(t, kept)
	assert.Len(t, e.Skipped, 1)
	assert.Equal(t, 3, calls)
}

func TestCleanIncompleteWithoutCompleterEmptiesBatch(t *testing.T) {
	cleaner := batch.NewCleaner(eventAccessors())
	items := []event{{ExternalID: "a"}}

	e := fault.New[event](fault.ItemMissing, "unknown parents").
		WithResource(core.ResourceExternalID).
		MarkIncomplete()

	kept := cleaner.Clean(context.Background(), e, items)
	assert.Empty(t, kept)
	assert.Len(t, e.Skipped, 1)
}

type refItem struct {
	ID string
}

type fakeRetriever struct {
	existing map[string]bool
	calls    int
	lastIDs  []core.Value
	err      error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, ids []core.Value, ignoreUnknown bool) ([]refItem, error) {
	f.calls++
	f.lastIDs = ids
	if f.err != nil {
		return nil, f.err
	}
	var out []refItem
	for _, id := range ids {
		if f.existing[id.Str()] {
			out = append(out, refItem{ID: id.Str()})
		}
	}
	return out, nil
}

func TestExistenceCompleterReportsAbsentIdentities(t *testing.T) {
	retriever := &fakeRetriever{existing: map[string]bool{"p1": true}}
	complete := batch.NewExistenceCompleter(
		retriever,
		func(items []event) []core.Value {
			var out []core.Value
			for _, it := range items {
				out = append(out, core.StringValue(it.ExternalID))
			}
			return out
		},
		func(ref refItem) core.Value { return core.StringValue(ref.ID) },
		16,
	)

	items := []event{{ExternalID: "p1"}, {ExternalID: "p2"}}
	e := fault.New[event](fault.ItemMissing, "unknown parents")

	missing, err := complete(context.Background(), e, items)
	require.NoError(t, err)
	assert.Equal(t, []core.Value{core.StringValue("p2")}, missing)

	// Second round: p1 is memoized, only p2 is looked up again.
	_, err = complete(context.Background(), e, items)
	require.NoError(t, err)
	assert.Equal(t, 2, retriever.calls)
	assert.Equal(t, []core.Value{core.StringValue("p2")}, retriever.lastIDs)
}

func TestExistenceCompleterPropagatesLookupError(t *testing.T) {
	retriever := &fakeRetriever{err: errors.New("boom")}
	complete := batch.NewExistenceCompleter(
		retriever,
		func(items []event) []core.Value {
			return []core.Value{core.StringValue("x")}
		},
		func(ref refItem) core.Value { return core.StringValue(ref.ID) },
		16,
	)

	_, err := complete(context.Background(), nil, []event{{ExternalID: "x"}})
	assert.Error(t, err)
}

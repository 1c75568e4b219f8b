package statestore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhissng/cortex/statestore"
)

func TestRangeStoreExpand(t *testing.T) {
	r := statestore.NewRangeStore(statestore.NewMemoryStore(), "states")

	r.Expand("ts-1", "2026-01-02T00:00:00Z", "2026-01-03T00:00:00Z")
	r.Expand("ts-1", "2026-01-01T00:00:00Z", "2026-01-02T12:00:00Z")
	r.Expand("ts-1", "2026-01-05T00:00:00Z", "2026-01-06T00:00:00Z")

	state, ok := r.Get("ts-1")
	require.True(t, ok)
	assert.Equal(t, "2026-01-01T00:00:00Z", state.First)
	assert.Equal(t, "2026-01-06T00:00:00Z", state.Last)
}

func TestRangeStoreExpandIgnoresEmptyBounds(t *testing.T) {
	r := statestore.NewRangeStore(statestore.NewMemoryStore(), "states")

	r.Expand("ts-1", "", "2026-01-03T00:00:00Z")
	state, ok := r.Get("ts-1")
	require.True(t, ok)
	assert.Empty(t, state.First)
	assert.Equal(t, "2026-01-03T00:00:00Z", state.Last)
}

func TestRangeStoreGetUnknown(t *testing.T) {
	r := statestore.NewRangeStore(statestore.NewMemoryStore(), "states")
	_, ok := r.Get("nope")
	assert.False(t, ok)
}

func TestRangeStoreFlushAndReload(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemoryStore()

	r := statestore.NewRangeStore(store, "states")
	r.Expand("ts-1", "a", "b")
	r.Expand("ts-2", "c", "d")
	require.NoError(t, r.Flush(ctx))

	reloaded := statestore.NewRangeStore(store, "states")
	require.NoError(t, reloaded.InitFromStore(ctx))

	state, ok := reloaded.Get("ts-1")
	require.True(t, ok)
	assert.Equal(t, "a", state.First)
	assert.Equal(t, "b", state.Last)

	state, ok = reloaded.Get("ts-2")
	require.True(t, ok)
	assert.Equal(t, "c", state.First)
}

func TestRangeStoreFlushIsIncremental(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemoryStore()

	r := statestore.NewRangeStore(store, "states")
	r.Expand("ts-1", "a", "b")
	require.NoError(t, r.Flush(ctx))

	// Nothing dirty: flush writes nothing new, state stays readable.
	require.NoError(t, r.Flush(ctx))

	var state statestore.ExtractionState
	require.NoError(t, store.Get(ctx, "states", "ts-1", &state))
	assert.Equal(t, "a", state.First)
}

func TestRangeStoreStopFlushesRemaining(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemoryStore()

	r := statestore.NewRangeStore(store, "states")
	r.Start(ctx)
	r.Expand("ts-1", "a", "b")
	require.NoError(t, r.Stop(ctx))

	var state statestore.ExtractionState
	require.NoError(t, store.Get(ctx, "states", "ts-1", &state))
	assert.Equal(t, "b", state.Last)
}

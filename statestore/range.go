package statestore

import (
	"context"
	"sync"
	"time"

	"github.com/abhissng/cortex/adapters/log"
)

// ExtractionState tracks the observed range of a single extraction
// stream, usually the first and last event timestamps seen.
type ExtractionState struct {
	ID    string `msgpack:"id"`
	First string `msgpack:"first"`
	Last  string `msgpack:"last"`
}

// RangeStore keeps extraction states in memory and periodically flushes
// the dirty ones to a backing Store. Expansions between flushes are
// coalesced per stream.
type RangeStore struct {
	store    Store
	table    string
	interval time.Duration
	logger   *log.Log

	mu     sync.Mutex
	states map[string]*ExtractionState
	dirty  map[string]struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// RangeStoreOption configures a RangeStore.
type RangeStoreOption func(*RangeStore)

// WithFlushInterval sets the interval between background flushes.
func WithFlushInterval(d time.Duration) RangeStoreOption {
	return func(r *RangeStore) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithRangeLogger sets the logger used for flush reporting.
func WithRangeLogger(logger *log.Log) RangeStoreOption {
	return func(r *RangeStore) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRangeStore creates a RangeStore flushing into the given table of
// the backing store.
func NewRangeStore(store Store, table string, opts ...RangeStoreOption) *RangeStore {
	r := &RangeStore{
		store:    store,
		table:    table,
		interval: 10 * time.Second,
		logger:   log.NewNop(),
		states:   make(map[string]*ExtractionState),
		dirty:    make(map[string]struct{}),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// InitFromStore loads all previously persisted states into memory.
// Call it once before Start.
func (r *RangeStore) InitFromStore(ctx context.Context) error {
	keys, err := r.store.Keys(ctx, r.table)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		var state ExtractionState
		if err := r.store.Get(ctx, r.table, key, &state); err != nil {
			return err
		}
		r.states[key] = &state
	}
	return nil
}

// Get returns the current state for a stream, if any.
func (r *RangeStore) Get(id string) (ExtractionState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[id]
	if !ok {
		return ExtractionState{}, false
	}
	return *state, true
}

// Expand widens the tracked range for a stream. An empty First or Last
// leaves the corresponding bound untouched. Lexicographic comparison is
// used, matching RFC 3339 timestamps.
func (r *RangeStore) Expand(id, first, last string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[id]
	if !ok {
		state = &ExtractionState{ID: id}
		r.states[id] = state
	}

	changed := false
	if first != "" && (state.First == "" || first < state.First) {
		state.First = first
		changed = true
	}
	if last != "" && (state.Last == "" || last > state.Last) {
		state.Last = last
		changed = true
	}
	if changed {
		r.dirty[id] = struct{}{}
	}
}

// Flush persists all dirty states. A state that fails to persist stays
// dirty and is retried on the next flush.
func (r *RangeStore) Flush(ctx context.Context) error {
	r.mu.Lock()
	pending := make(map[string]ExtractionState, len(r.dirty))
	for id := range r.dirty {
		pending[id] = *r.states[id]
	}
	r.mu.Unlock()

	var firstErr error
	for id, state := range pending {
		if err := r.store.Put(ctx, r.table, id, &state); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			r.logger.Error("failed to flush extraction state",
				log.String("id", id), log.Err(err))
			continue
		}
		r.mu.Lock()
		// Only clear if no newer expansion arrived during the write.
		if current, ok := r.states[id]; ok && *current == state {
			delete(r.dirty, id)
		}
		r.mu.Unlock()
	}
	return firstErr
}

// Start launches the background flush loop. Stop cancels it.
func (r *RangeStore) Start(ctx context.Context) {
	go func() {
		defer close(r.doneCh)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.Flush(ctx); err != nil {
					r.logger.Warn("periodic state flush failed", log.Err(err))
				}
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			}
		}
	}()
}

// Stop halts the flush loop and performs a final flush.
func (r *RangeStore) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	<-r.doneCh
	return r.Flush(ctx)
}

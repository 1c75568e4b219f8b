package statestore

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. Useful for tests and for
// extractors that do not need durable state.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]map[string][]byte)}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, table, key string, value any) error {
	data, err := encode(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[table]
	if !ok {
		t = make(map[string][]byte)
		s.tables[table] = t
	}
	t[key] = data
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, table, key string, dst any) error {
	s.mu.RLock()
	data, ok := s.tables[table][key]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return decode(data, dst)
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, table, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables[table], key)
	return nil
}

// Keys implements Store.
func (s *MemoryStore) Keys(_ context.Context, table string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.tables[table]))
	for k := range s.tables[table] {
		keys = append(keys, k)
	}
	return keys, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

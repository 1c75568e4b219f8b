// Package cache provides a thread-safe generic LRU cache used to memoize
// remote existence lookups.
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUCache provides a thread-safe wrapper around the lru.Cache library,
// a simple Least Recently Used cache with a fixed capacity.
type LRUCache[K comparable, V any] struct {
	cache *lru.Cache[K, V]
	mu    sync.Mutex
}

// NewLRUCache creates a new LRUCache instance with the specified maximum
// size. It returns an error if the provided maxSize is invalid.
func NewLRUCache[K comparable, V any](maxSize int) (*LRUCache[K, V], error) {
	cache, err := lru.New[K, V](maxSize)
	if err != nil {
		return nil, err
	}
	return &LRUCache[K, V]{cache: cache}, nil
}

// Add adds a key-value pair to the cache, evicting the least recently
// used entry when full.
func (l *LRUCache[K, V]) Add(key K, value V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Add(key, value)
}

// Get retrieves the value associated with the given key from the cache.
func (l *LRUCache[K, V]) Get(key K) (V, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache.Get(key)
}

// Contains reports whether the key is present without updating recency.
func (l *LRUCache[K, V]) Contains(key K) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache.Contains(key)
}

// Remove removes the entry associated with the given key from the cache.
func (l *LRUCache[K, V]) Remove(key K) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Remove(key)
}

// Purge removes all entries from the cache.
func (l *LRUCache[K, V]) Purge() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Purge()
}

// Len returns the current number of entries in the cache.
func (l *LRUCache[K, V]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache.Len()
}

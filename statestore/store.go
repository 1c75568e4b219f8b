// Package statestore persists keyed extractor state records locally or
// in a shared backend, so extraction can resume where it left off.
package statestore

import (
	"context"
	"errors"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned when a key is not present in a store table.
var ErrNotFound = errors.New("statestore: key not found")

// Store persists keyed records grouped into tables. Values are encoded
// with msgpack; any msgpack-serializable type works.
type Store interface {
	// Put writes the value under table/key, overwriting any previous
	// record.
	Put(ctx context.Context, table, key string, value any) error
	// Get reads the record under table/key into dst. Returns
	// ErrNotFound when the key is absent.
	Get(ctx context.Context, table, key string, dst any) error
	// Delete removes the record under table/key. Deleting an absent key
	// is not an error.
	Delete(ctx context.Context, table, key string) error
	// Keys lists the keys present in a table.
	Keys(ctx context.Context, table string) ([]string, error)
	// Close releases the backend resources.
	Close() error
}

func encode(value any) ([]byte, error) {
	return msgpack.Marshal(value)
}

func decode(data []byte, dst any) error {
	return msgpack.Unmarshal(data, dst)
}

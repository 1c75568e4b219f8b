// Package batch provides chunking helpers and the partial-failure batch
// cleaner used by the retry orchestrator.
package batch

// Chunk divides items into slices of at most size elements, preserving
// order. The last chunk may be smaller. A non-positive size yields a
// single chunk with everything in it.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}

// ChunkCount returns the number of chunks Chunk would produce.
func ChunkCount[T any](items []T, size int) int {
	if len(items) == 0 {
		return 0
	}
	if size <= 0 {
		return 1
	}
	return (len(items) + size - 1) / size
}

// keyedChunk pairs a key with a slice of its values inside one chunk.
type keyedChunk[K comparable, V any] struct {
	Key    K
	Values []V
}

// KeyedGroup is one chunk produced by ChunkKeyed: a set of keys with
// their (possibly partial) value slices.
type KeyedGroup[K comparable, V any] []keyedChunk[K, V]

// ChunkKeyed splits a keyed collection into chunks holding at most
// maxKeys keys and maxValues values in total. A single key's values may
// be split across several chunks when they exceed maxValues. Used by
// upload queues that group points per series.
func ChunkKeyed[K comparable, V any](groups map[K][]V, maxKeys, maxValues int) []KeyedGroup[K, V] {
	if len(groups) == 0 {
		return nil
	}
	if maxKeys <= 0 {
		maxKeys = len(groups)
	}

	var (
		out     []KeyedGroup[K, V]
		current KeyedGroup[K, V]
		count   int
	)
	flush := func() {
		if len(current) > 0 {
			out = append(out, current)
			current = nil
			count = 0
		}
	}

	for key, values := range groups {
		for _, part := range Chunk(values, maxValues) {
			if maxValues > 0 && count+len(part) > maxValues {
				flush()
			}
			if len(current) >= maxKeys {
				flush()
			}
			current = append(current, keyedChunk[K, V]{Key: key, Values: part})
			count += len(part)
		}
	}
	flush()
	return out
}

package database

// DefaultBatchSize bounds the predicate list of a single existence query.
const DefaultBatchSize = 100

// Chunk splits items into consecutive slices of at most size elements.
// A non-positive size yields a single chunk. Empty input yields no chunks.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

package pagination

import (
	"sync"
)

// Chunk is an ordered run of items fetched by one partition in one call.
type Chunk[T any] struct {
	// Partition is the index of the partition that fetched this chunk.
	Partition int

	// Items are the records of the chunk, in server order.
	Items []T
}

// chunkQueue is a FIFO queue of chunks shared between partition producers
// and the consumer. The queue itself is unbounded; producers enforce the
// bound by checking Len before fetching the next page.
type chunkQueue[T any] struct {
	mu     sync.Mutex
	chunks []Chunk[T]
}

func (q *chunkQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

func (q *chunkQueue[T]) Push(c Chunk[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.chunks = append(q.chunks, c)
}

func (q *chunkQueue[T]) Pop() (Chunk[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.chunks) == 0 {
		var zero Chunk[T]
		return zero, false
	}

	c := q.chunks[0]
	q.chunks = q.chunks[1:]
	return c, true
}

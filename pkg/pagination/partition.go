package pagination

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// SplitFunc obtains n initial cursors from the server, one per partition.
// The cursors cover disjoint key-range slices of the collection; the server
// may return fewer than n when the collection is small.
type SplitFunc func(ctx context.Context, n int) ([]string, error)

// PartitionConfig holds partition reader configuration.
type PartitionConfig struct {
	// Partitions is the requested partition count (default: MaxWorkers).
	Partitions int

	// MaxWorkers caps the number of concurrent partition fetch loops.
	// Default: 10.
	MaxWorkers int

	// Limit is the maximum total number of items to yield across all
	// partitions. Zero or negative means unlimited.
	Limit int

	// PartitionThreshold is the minimum item count worth one partition.
	// With a finite Limit the partition count is clamped to
	// ceil(Limit/PartitionThreshold). Default: 10000 (one page).
	PartitionThreshold int

	// BackoffUnit scales the randomized backpressure sleep: a full
	// producer sleeps uniform [0, P] x BackoffUnit. Default: 1s.
	BackoffUnit time.Duration
}

// PartitionReader reads a paginated collection through P concurrent
// cursor partitions while bounding unconsumed chunks to P.
type PartitionReader[T any] struct {
	queue      *chunkQueue[T]
	partitions int
	limit      int
	yielded    int

	stop     chan struct{}
	stopOnce func()
	done     chan struct{}
	err      error

	chunksFetched atomic.Int64
}

// consumerPoll is the consumer-side wait interval on an empty queue.
const consumerPoll = 5 * time.Millisecond

// ReadPartitions starts a concurrent partitioned read. split obtains the
// initial cursors, fetch reads one page of one partition. The returned
// reader must be drained with Next and finished with Close.
func ReadPartitions[T any](ctx context.Context, split SplitFunc, fetch PageFunc[T], cfg PartitionConfig) (*PartitionReader[T], error) {
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	requested := cfg.Partitions
	if requested <= 0 {
		requested = maxWorkers
	}

	limit := cfg.Limit
	if limit <= 0 {
		limit = -1
	}

	threshold := cfg.PartitionThreshold
	if threshold <= 0 {
		threshold = 10000
	}

	backoffUnit := cfg.BackoffUnit
	if backoffUnit <= 0 {
		backoffUnit = time.Second
	}

	p := requested
	if p > maxWorkers {
		p = maxWorkers
	}
	if limit > 0 {
		// No point splitting finer than the limit fills partitions
		byLimit := (limit + threshold - 1) / threshold
		if p > byLimit {
			p = byLimit
		}
	}
	if p < 1 {
		p = 1
	}

	cursors, err := split(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("split cursors: %w", err)
	}
	if len(cursors) == 0 {
		return nil, fmt.Errorf("split cursors: server returned no cursors")
	}
	if len(cursors) < p {
		p = len(cursors)
	}

	log.Info().
		Int("partitions", p).
		Int("limit", limit).
		Msg("Starting partitioned read")

	r := &PartitionReader[T]{
		queue:      &chunkQueue[T]{},
		partitions: p,
		limit:      limit,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	stopCh := r.stop
	var stopped atomic.Bool
	r.stopOnce = func() {
		if stopped.CompareAndSwap(false, true) {
			close(stopCh)
		}
	}

	eg, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p; i++ {
		partition := i
		cursor := cursors[i]
		eg.Go(func() error {
			return r.runPartition(gctx, partition, cursor, fetch, backoffUnit)
		})
	}

	go func() {
		r.err = eg.Wait()
		close(r.done)
	}()

	return r, nil
}

// runPartition is one partition's fetch loop. It owns its cursor
// exclusively; page order within the partition is preserved.
func (r *PartitionReader[T]) runPartition(ctx context.Context, partition int, cursor string, fetch PageFunc[T], backoffUnit time.Duration) error {
	pagesProcessed := 0

	for {
		select {
		case <-r.stop:
			log.Debug().
				Int("partition", partition).
				Int("pages_processed", pagesProcessed).
				Msg("Partition stopping (limit reached)")
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		// Backpressure: hold off the next fetch while P chunks are
		// unconsumed. The randomized sleep avoids refetch storms when
		// several full producers wake at once.
		for r.queue.Len() >= r.partitions {
			interval := time.Duration(rand.Float64() * float64(r.partitions) * float64(backoffUnit))
			select {
			case <-r.stop:
				return nil
			case <-ctx.Done():
				return nil
			case <-time.After(interval):
			}
		}

		page, err := fetch(ctx, cursor)
		if err != nil {
			select {
			case <-r.stop:
				// Stopped while the call was in flight; not an error
				return nil
			case <-ctx.Done():
				return nil
			default:
			}
			return fmt.Errorf("partition %d: %w", partition, err)
		}

		if len(page.Items) > 0 {
			r.queue.Push(Chunk[T]{Partition: partition, Items: page.Items})

			if fetched := r.chunksFetched.Add(1); fetched%50 == 0 {
				log.Info().
					Int64("chunks_fetched", fetched).
					Msg("Partitioned read progress")
			}
		}

		pagesProcessed++

		if page.NextCursor == "" {
			log.Debug().
				Int("partition", partition).
				Int("pages_processed", pagesProcessed).
				Msg("Partition exhausted")
			return nil
		}
		cursor = page.NextCursor
	}
}

// Next returns the next available chunk, in FIFO arrival order. Ordering
// across partitions is not guaranteed. The second return value is false
// when all partitions are exhausted (or the limit is reached); any
// partition failure surfaces as the error.
func (r *PartitionReader[T]) Next(ctx context.Context) ([]T, bool, error) {
	for {
		if r.limit >= 0 && r.yielded >= r.limit {
			r.Stop()
			return nil, false, nil
		}

		if chunk, ok := r.queue.Pop(); ok {
			items := chunk.Items
			if r.limit >= 0 {
				if remaining := r.limit - r.yielded; len(items) > remaining {
					items = items[:remaining]
				}
			}
			r.yielded += len(items)
			if r.limit >= 0 && r.yielded >= r.limit {
				r.Stop()
			}
			return items, true, nil
		}

		select {
		case <-r.done:
			if r.queue.Len() > 0 {
				// Drain chunks pushed before the producers finished
				continue
			}
			return nil, false, r.err
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(consumerPoll):
		}
	}
}

// Stop signals all partitions to stop after their current call.
// In-flight HTTP calls are not interrupted.
func (r *PartitionReader[T]) Stop() {
	r.stopOnce()
}

// Close stops the reader and waits for every partition to reach its
// terminal state. A partition stopped by the limit is not an error.
func (r *PartitionReader[T]) Close(ctx context.Context) error {
	r.Stop()
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Partitions returns the effective partition count P.
func (r *PartitionReader[T]) Partitions() int {
	return r.partitions
}

// Package tasks executes batches of API tasks on a worker pool and triages
// the outcome: tasks that succeeded, tasks the server definitively rejected,
// and tasks whose fate is unknown (server errors, network failures).
package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fjorddata/fjord-go/pkg/client"
)

// TaskFunc runs a single task against the API.
type TaskFunc[T any] func(ctx context.Context, task T) error

// Config holds executor configuration.
type Config struct {
	// MaxWorkers is the number of tasks run concurrently. Default: 10.
	MaxWorkers int

	// FailFast stops dispatching new tasks after the first failure.
	// Already-running tasks finish; undispatched tasks are reported as
	// skipped. Default: run every task.
	FailFast bool
}

// errSkipped marks tasks that were never attempted under FailFast.
var errSkipped = errors.New("task skipped")

// Execute runs every task on a worker pool and returns the tasks that
// succeeded. When any task does not succeed, the returned error is a
// *CompoundError[T] placing each remaining task in exactly one bucket.
func Execute[T any](ctx context.Context, items []T, run TaskFunc[T], cfg Config) ([]T, error) {
	if len(items) == 0 {
		return nil, nil
	}

	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = 10
	}
	if workers > len(items) {
		workers = len(items)
	}

	start := time.Now()
	log.Debug().
		Int("tasks", len(items)).
		Int("workers", workers).
		Msg("Executing task batch")

	taskCh := make(chan int, len(items))
	for i := range items {
		taskCh <- i
	}
	close(taskCh)

	outcomes := make([]error, len(items))
	var stop atomic.Bool

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range taskCh {
				if stop.Load() {
					outcomes[idx] = errSkipped
					continue
				}
				select {
				case <-ctx.Done():
					// Never attempted; the outcome is unknowable
					outcomes[idx] = ctx.Err()
					continue
				default:
				}

				err := run(ctx, items[idx])
				outcomes[idx] = err
				if err != nil {
					log.Warn().
						Err(err).
						Int("task", idx).
						Msg("Task failed")
					if cfg.FailFast {
						stop.Store(true)
					}
				}
			}
		}()
	}
	wg.Wait()

	var (
		succeeded []T
		compound  *CompoundError[T]
	)
	for i, err := range outcomes {
		switch {
		case err == nil:
			succeeded = append(succeeded, items[i])
			tasksTotal.WithLabelValues("succeeded").Inc()
			continue
		case errors.Is(err, errSkipped):
			if compound == nil {
				compound = &CompoundError[T]{}
			}
			compound.Skipped = append(compound.Skipped, items[i])
			tasksTotal.WithLabelValues("skipped").Inc()
			continue
		}

		if compound == nil {
			compound = &CompoundError[T]{}
		}
		compound.Errors = append(compound.Errors, err)
		if client.Classify(err) == client.ErrorClassClient {
			// The server definitively rejected this task
			compound.Failed = append(compound.Failed, items[i])
			tasksTotal.WithLabelValues("failed").Inc()
		} else {
			compound.Unknown = append(compound.Unknown, items[i])
			tasksTotal.WithLabelValues("unknown").Inc()
		}
	}

	if compound != nil {
		log.Warn().
			Int("succeeded", len(succeeded)).
			Int("failed", len(compound.Failed)).
			Int("unknown", len(compound.Unknown)).
			Int("skipped", len(compound.Skipped)).
			Dur("duration", time.Since(start)).
			Msg("Task batch completed with errors")
		return succeeded, compound
	}

	log.Debug().
		Int("succeeded", len(succeeded)).
		Dur("duration", time.Since(start)).
		Msg("Task batch completed")
	return succeeded, nil
}

// SplitBatches splits items into consecutive batches of at most size
// elements. The last batch may be shorter.
func SplitBatches[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}

	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

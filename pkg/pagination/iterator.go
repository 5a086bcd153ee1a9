package pagination

import (
	"context"
)

// Page is one page of a cursor-paginated listing.
type Page[T any] struct {
	// Items are the records of this page, in server order.
	Items []T

	// NextCursor points at the next page. Empty means the listing is
	// exhausted.
	NextCursor string
}

// PageFunc fetches a single page. An empty cursor requests the first page.
type PageFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

// IteratorConfig holds iterator configuration.
type IteratorConfig struct {
	// Limit is the maximum total number of items to yield.
	// Zero or negative means unlimited.
	Limit int

	// Cursor is the cursor to resume from (default: start of listing).
	Cursor string
}

// Iterator walks a cursor-paginated listing serially, one item at a time.
type Iterator[T any] struct {
	fetch   PageFunc[T]
	cursor  string
	buf     []T
	limit   int
	yielded int
	done    bool
}

// NewIterator creates an iterator over a paginated listing.
func NewIterator[T any](fetch PageFunc[T], cfg IteratorConfig) *Iterator[T] {
	limit := cfg.Limit
	if limit <= 0 {
		limit = -1
	}
	return &Iterator[T]{
		fetch:  fetch,
		cursor: cfg.Cursor,
		limit:  limit,
	}
}

// Next returns the next item. The second return value is false when the
// listing (or the limit) is exhausted.
func (it *Iterator[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T

	if it.limit >= 0 && it.yielded >= it.limit {
		return zero, false, nil
	}

	for len(it.buf) == 0 {
		if it.done {
			return zero, false, nil
		}

		page, err := it.fetch(ctx, it.cursor)
		if err != nil {
			return zero, false, err
		}

		it.buf = page.Items
		it.cursor = page.NextCursor
		if page.NextCursor == "" {
			it.done = true
		}
	}

	item := it.buf[0]
	it.buf = it.buf[1:]
	it.yielded++
	return item, true, nil
}

// All collects the remaining items into a slice.
func (it *Iterator[T]) All(ctx context.Context) ([]T, error) {
	var items []T
	for {
		item, ok, err := it.Next(ctx)
		if err != nil {
			return items, err
		}
		if !ok {
			return items, nil
		}
		items = append(items, item)
	}
}

// Cursor returns the cursor positioned after the last fetched page.
// It can be persisted to resume the listing later.
func (it *Iterator[T]) Cursor() string {
	return it.cursor
}

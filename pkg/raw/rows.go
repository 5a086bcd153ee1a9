package raw

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fjorddata/fjord-go/pkg/pagination"
	"github.com/fjorddata/fjord-go/pkg/tasks"
)

const (
	// insertBatchSize is the server-side cap on rows per insert request.
	insertBatchSize = 10000

	// deleteBatchSize is the server-side cap on keys per delete request.
	deleteBatchSize = 1000

	// defaultPageSize is the rows fetched per page when listing.
	defaultPageSize = 10000
)

// RowOptions filters and shapes a row listing.
type RowOptions struct {
	// Columns restricts which columns are returned. Empty returns all.
	Columns []string

	// MinLastUpdated and MaxLastUpdated bound the rows' last-updated
	// timestamps (epoch milliseconds, exclusive min / inclusive max).
	MinLastUpdated int64
	MaxLastUpdated int64

	// PageSize is the rows per request. Default: 10000.
	PageSize int

	// Limit caps the total rows yielded. Zero iterates everything.
	Limit int

	// Cursor resumes a previous listing. Ignored by ReadRowsParallel.
	Cursor string

	// Partitions is the requested partition count for ReadRowsParallel.
	// Zero lets the reader pick one worker per partition.
	Partitions int

	// backoffUnit shrinks the backpressure sleep in tests.
	backoffUnit time.Duration
}

func (o RowOptions) query(cursor string) url.Values {
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	pageSize := o.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	query.Set("limit", strconv.Itoa(pageSize))

	if len(o.Columns) > 0 {
		query.Set("columns", strings.Join(o.Columns, ","))
	}
	if o.MinLastUpdated > 0 {
		query.Set("minLastUpdatedTime", strconv.FormatInt(o.MinLastUpdated, 10))
	}
	if o.MaxLastUpdated > 0 {
		query.Set("maxLastUpdatedTime", strconv.FormatInt(o.MaxLastUpdated, 10))
	}
	return query
}

func (s *Service) rowsEndpoint(db, table string, extra ...string) string {
	parts := append([]string{"raw", "dbs", url.PathEscape(db), "tables", url.PathEscape(table), "rows"}, extra...)
	return s.client.ProjectPath(parts...)
}

func (s *Service) fetchRowPage(db, table string, opts RowOptions) pagination.PageFunc[Row] {
	return func(ctx context.Context, cursor string) (pagination.Page[Row], error) {
		if db == "" || table == "" {
			return pagination.Page[Row]{}, fmt.Errorf("raw: database and table names must not be empty")
		}

		var resp itemsEnvelope[Row]
		if err := s.client.GetJSON(ctx, s.rowsEndpoint(db, table), opts.query(cursor), &resp); err != nil {
			return pagination.Page[Row]{}, err
		}
		return pagination.Page[Row]{Items: resp.Items, NextCursor: resp.NextCursor}, nil
	}
}

// Rows iterates over a table's rows serially.
func (s *Service) Rows(db, table string, opts RowOptions) *pagination.Iterator[Row] {
	return pagination.NewIterator(s.fetchRowPage(db, table, opts), pagination.IteratorConfig{
		Limit:  opts.Limit,
		Cursor: opts.Cursor,
	})
}

// RetrieveRow fetches a single row by key.
func (s *Service) RetrieveRow(ctx context.Context, db, table, key string) (Row, error) {
	if db == "" || table == "" || key == "" {
		return Row{}, fmt.Errorf("raw: database, table and key must not be empty")
	}

	var row Row
	err := s.client.GetJSON(ctx, s.rowsEndpoint(db, table, url.PathEscape(key)), nil, &row)
	if err != nil {
		return Row{}, err
	}
	return row, nil
}

// InsertRows writes rows to a table. The rows are split into batches of at
// most 10000 and written concurrently; on partial failure the returned
// error is a *tasks.CompoundError[[]Row] triaging the batches.
func (s *Service) InsertRows(ctx context.Context, db, table string, rows []Row, ensureParent bool) error {
	if db == "" || table == "" {
		return fmt.Errorf("raw: database and table names must not be empty")
	}
	for i, row := range rows {
		if row.Key == "" {
			return fmt.Errorf("raw: row %d has an empty key", i)
		}
	}
	if len(rows) == 0 {
		return nil
	}

	endpoint := s.rowsEndpoint(db, table)
	if ensureParent {
		endpoint += "?ensureParent=true"
	}

	start := time.Now()
	batches := tasks.SplitBatches(rows, insertBatchSize)
	_, err := tasks.Execute(ctx, batches, func(ctx context.Context, batch []Row) error {
		return s.client.PostJSON(ctx, endpoint, itemsEnvelope[Row]{Items: batch}, nil)
	}, tasks.Config{MaxWorkers: s.client.MaxWorkers()})
	if err != nil {
		return err
	}

	log.Debug().
		Str("database", db).
		Str("table", table).
		Int("rows", len(rows)).
		Int("batches", len(batches)).
		Dur("duration", time.Since(start)).
		Msg("Raw rows inserted")
	return nil
}

// DeleteRows deletes rows by key, in batches of at most 1000. On partial
// failure the returned error is a *tasks.CompoundError[[]string] triaging
// the key batches.
func (s *Service) DeleteRows(ctx context.Context, db, table string, keys []string) error {
	if db == "" || table == "" {
		return fmt.Errorf("raw: database and table names must not be empty")
	}
	if len(keys) == 0 {
		return nil
	}

	type ref struct {
		Key string `json:"key"`
	}
	endpoint := s.rowsEndpoint(db, table, "delete")

	_, err := tasks.Execute(ctx, tasks.SplitBatches(keys, deleteBatchSize), func(ctx context.Context, batch []string) error {
		refs := make([]ref, len(batch))
		for i, key := range batch {
			refs[i] = ref{Key: key}
		}
		return s.client.PostJSON(ctx, endpoint, itemsEnvelope[ref]{Items: refs}, nil)
	}, tasks.Config{MaxWorkers: s.client.MaxWorkers()})
	return err
}

// ParallelCursors asks the server to split a table into up to n disjoint
// cursor partitions for concurrent reading.
func (s *Service) ParallelCursors(ctx context.Context, db, table string, n int, opts RowOptions) ([]string, error) {
	if db == "" || table == "" {
		return nil, fmt.Errorf("raw: database and table names must not be empty")
	}
	if n < 1 {
		return nil, fmt.Errorf("raw: cursor count must be at least 1, got %d", n)
	}

	query := url.Values{}
	query.Set("numberOfCursors", strconv.Itoa(n))
	if opts.MinLastUpdated > 0 {
		query.Set("minLastUpdatedTime", strconv.FormatInt(opts.MinLastUpdated, 10))
	}
	if opts.MaxLastUpdated > 0 {
		query.Set("maxLastUpdatedTime", strconv.FormatInt(opts.MaxLastUpdated, 10))
	}

	var resp itemsEnvelope[string]
	if err := s.client.GetJSON(ctx, s.rowsEndpoint(db, table, "cursors"), query, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ReadRowsParallel reads a table through server-split cursor partitions
// concurrently. The returned reader yields chunks of rows until the table
// (or opts.Limit) is exhausted and must be finished with Close.
func (s *Service) ReadRowsParallel(ctx context.Context, db, table string, opts RowOptions) (*pagination.PartitionReader[Row], error) {
	if db == "" || table == "" {
		return nil, fmt.Errorf("raw: database and table names must not be empty")
	}

	split := func(ctx context.Context, n int) ([]string, error) {
		return s.ParallelCursors(ctx, db, table, n, opts)
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return pagination.ReadPartitions(ctx, split, s.fetchRowPage(db, table, opts), pagination.PartitionConfig{
		Partitions:         opts.Partitions,
		MaxWorkers:         s.client.MaxWorkers(),
		Limit:              opts.Limit,
		PartitionThreshold: pageSize,
		BackoffUnit:        opts.backoffUnit,
	})
}

package raw

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/fjorddata/fjord-go/pkg/pagination"
)

// Tables iterates over the tables of one database.
func (s *Service) Tables(db string, limit int) *pagination.Iterator[Table] {
	fetch := func(ctx context.Context, cursor string) (pagination.Page[Table], error) {
		if db == "" {
			return pagination.Page[Table]{}, fmt.Errorf("raw: database name must not be empty")
		}

		query := url.Values{}
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var resp itemsEnvelope[Table]
		endpoint := s.client.ProjectPath("raw", "dbs", url.PathEscape(db), "tables")
		if err := s.client.GetJSON(ctx, endpoint, query, &resp); err != nil {
			return pagination.Page[Table]{}, err
		}
		return pagination.Page[Table]{Items: resp.Items, NextCursor: resp.NextCursor}, nil
	}
	return pagination.NewIterator(fetch, pagination.IteratorConfig{Limit: limit})
}

// CreateTables creates tables in a database. With ensureParent set, a
// missing database is created on the fly instead of failing the request.
func (s *Service) CreateTables(ctx context.Context, db string, ensureParent bool, names ...string) ([]Table, error) {
	if db == "" {
		return nil, fmt.Errorf("raw: database name must not be empty")
	}
	if len(names) == 0 {
		return nil, nil
	}

	items := make([]Table, len(names))
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("raw: table name must not be empty")
		}
		items[i] = Table{Name: name}
	}

	endpoint := s.client.ProjectPath("raw", "dbs", url.PathEscape(db), "tables")
	if ensureParent {
		endpoint += "?ensureParent=true"
	}

	var resp itemsEnvelope[Table]
	if err := s.client.PostJSON(ctx, endpoint, itemsEnvelope[Table]{Items: items}, &resp); err != nil {
		return nil, err
	}

	log.Debug().
		Str("database", db).
		Int("tables", len(resp.Items)).
		Msg("Raw tables created")
	return resp.Items, nil
}

// DeleteTables deletes tables from a database by name.
func (s *Service) DeleteTables(ctx context.Context, db string, names ...string) error {
	if db == "" {
		return fmt.Errorf("raw: database name must not be empty")
	}
	if len(names) == 0 {
		return nil
	}

	items := make([]Table, len(names))
	for i, name := range names {
		items[i] = Table{Name: name}
	}

	endpoint := s.client.ProjectPath("raw", "dbs", url.PathEscape(db), "tables", "delete")
	return s.client.PostJSON(ctx, endpoint, itemsEnvelope[Table]{Items: items}, nil)
}

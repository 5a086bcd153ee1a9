package raw

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/fjorddata/fjord-go/pkg/pagination"
)

// Databases iterates over the project's raw databases. A limit of zero
// iterates everything.
func (s *Service) Databases(limit int) *pagination.Iterator[Database] {
	fetch := func(ctx context.Context, cursor string) (pagination.Page[Database], error) {
		query := url.Values{}
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var resp itemsEnvelope[Database]
		if err := s.client.GetJSON(ctx, s.client.ProjectPath("raw", "dbs"), query, &resp); err != nil {
			return pagination.Page[Database]{}, err
		}
		return pagination.Page[Database]{Items: resp.Items, NextCursor: resp.NextCursor}, nil
	}
	return pagination.NewIterator(fetch, pagination.IteratorConfig{Limit: limit})
}

// CreateDatabases creates raw databases by name.
func (s *Service) CreateDatabases(ctx context.Context, names ...string) ([]Database, error) {
	if len(names) == 0 {
		return nil, nil
	}

	items := make([]Database, len(names))
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("raw: database name must not be empty")
		}
		items[i] = Database{Name: name}
	}

	var resp itemsEnvelope[Database]
	err := s.client.PostJSON(ctx, s.client.ProjectPath("raw", "dbs"), itemsEnvelope[Database]{Items: items}, &resp)
	if err != nil {
		return nil, err
	}

	log.Debug().Int("databases", len(resp.Items)).Msg("Raw databases created")
	return resp.Items, nil
}

// DeleteDatabases deletes raw databases by name. With recursive set, the
// contained tables are dropped too; otherwise deleting a non-empty
// database is rejected by the server.
func (s *Service) DeleteDatabases(ctx context.Context, recursive bool, names ...string) error {
	if len(names) == 0 {
		return nil
	}

	items := make([]Database, len(names))
	for i, name := range names {
		items[i] = Database{Name: name}
	}

	endpoint := s.client.ProjectPath("raw", "dbs", "delete")
	if recursive {
		endpoint += "?recursive=" + strconv.FormatBool(recursive)
	}
	return s.client.PostJSON(ctx, endpoint, itemsEnvelope[Database]{Items: items}, nil)
}

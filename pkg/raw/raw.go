// Package raw accesses the Fjord raw staging store: schemaless NoSQL-style
// tables grouped into databases, holding JSON rows addressed by key.
package raw

import (
	"encoding/json"

	"github.com/fjorddata/fjord-go/pkg/client"
)

// Database is a named group of raw tables.
type Database struct {
	Name        string `json:"name"`
	CreatedTime int64  `json:"createdTime,omitempty"`
}

// Table is a schemaless table inside a database.
type Table struct {
	Name        string `json:"name"`
	CreatedTime int64  `json:"createdTime,omitempty"`
}

// Row is a single keyed JSON document. Columns is kept raw so callers can
// decode into their own types.
type Row struct {
	Key         string          `json:"key"`
	Columns     json.RawMessage `json:"columns"`
	LastUpdated int64           `json:"lastUpdatedTime,omitempty"`
}

// DecodeColumns unmarshals the row's columns into out.
func (r Row) DecodeColumns(out any) error {
	return json.Unmarshal(r.Columns, out)
}

type itemsEnvelope[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// Service accesses the raw API of one project.
type Service struct {
	client *client.Client
}

// NewService creates a raw service on top of an API client.
func NewService(c *client.Client) *Service {
	return &Service{client: c}
}

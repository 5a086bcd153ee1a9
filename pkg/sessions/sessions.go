// Package sessions manages Fjord API sessions. A session binds a service
// principal's credentials server-side and hands out a one-time nonce that
// other requests (e.g. long-running extraction jobs) can attach instead of
// a raw token.
package sessions

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/fjorddata/fjord-go/pkg/client"
	"github.com/fjorddata/fjord-go/pkg/pagination"
)

// Session statuses as reported by the API.
const (
	StatusReady     = "READY"
	StatusActive    = "ACTIVE"
	StatusCancelled = "CANCELLED"
	StatusRevoked   = "REVOKED"
)

// Session is a server-side credential binding.
type Session struct {
	ID             int64  `json:"id"`
	Type           string `json:"type,omitempty"`
	Status         string `json:"status"`
	Nonce          string `json:"nonce,omitempty"`
	ClientID       string `json:"clientId,omitempty"`
	CreationTime   int64  `json:"creationTime,omitempty"`
	ExpirationTime int64  `json:"expirationTime,omitempty"`
}

// CreateRequest selects how the new session authenticates. Exactly one of
// TokenExchange or the client-credentials pair must be set.
type CreateRequest struct {
	TokenExchange bool   `json:"tokenExchange,omitempty"`
	ClientID      string `json:"clientId,omitempty"`
	ClientSecret  string `json:"clientSecret,omitempty"`
}

type itemsEnvelope[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// Service accesses the sessions API of one project.
type Service struct {
	client *client.Client
}

// NewService creates a sessions service on top of an API client.
func NewService(c *client.Client) *Service {
	return &Service{client: c}
}

// Create opens a new session and returns it with its nonce populated.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Session, error) {
	if req.TokenExchange == (req.ClientID != "") {
		return Session{}, fmt.Errorf("sessions: exactly one of token exchange or client credentials must be set")
	}

	var resp itemsEnvelope[Session]
	err := s.client.PostJSON(ctx, s.client.ProjectPath("sessions"), itemsEnvelope[CreateRequest]{
		Items: []CreateRequest{req},
	}, &resp)
	if err != nil {
		return Session{}, err
	}
	if len(resp.Items) != 1 {
		return Session{}, fmt.Errorf("sessions: expected 1 created session, got %d", len(resp.Items))
	}

	created := resp.Items[0]
	log.Debug().
		Int64("session_id", created.ID).
		Str("status", created.Status).
		Msg("Session created")
	return created, nil
}

// List iterates over the project's sessions.
func (s *Service) List(limit int) *pagination.Iterator[Session] {
	fetch := func(ctx context.Context, cursor string) (pagination.Page[Session], error) {
		query := url.Values{}
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var resp itemsEnvelope[Session]
		if err := s.client.GetJSON(ctx, s.client.ProjectPath("sessions"), query, &resp); err != nil {
			return pagination.Page[Session]{}, err
		}
		return pagination.Page[Session]{Items: resp.Items, NextCursor: resp.NextCursor}, nil
	}
	return pagination.NewIterator(fetch, pagination.IteratorConfig{Limit: limit})
}

// Retrieve fetches sessions by ID. Unknown IDs are an error.
func (s *Service) Retrieve(ctx context.Context, ids ...int64) ([]Session, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	type ref struct {
		ID int64 `json:"id"`
	}
	refs := make([]ref, len(ids))
	for i, id := range ids {
		refs[i] = ref{ID: id}
	}

	var resp itemsEnvelope[Session]
	err := s.client.PostJSON(ctx, s.client.ProjectPath("sessions", "byids"), itemsEnvelope[ref]{Items: refs}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Revoke invalidates sessions and returns their final state.
func (s *Service) Revoke(ctx context.Context, ids ...int64) ([]Session, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	type ref struct {
		ID int64 `json:"id"`
	}
	refs := make([]ref, len(ids))
	for i, id := range ids {
		refs[i] = ref{ID: id}
	}

	var resp itemsEnvelope[Session]
	err := s.client.PostJSON(ctx, s.client.ProjectPath("sessions", "revoke"), itemsEnvelope[ref]{Items: refs}, &resp)
	if err != nil {
		return nil, err
	}

	log.Debug().Int("revoked", len(resp.Items)).Msg("Sessions revoked")
	return resp.Items, nil
}

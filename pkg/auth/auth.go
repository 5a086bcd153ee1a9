// Package auth provides credential providers for the Fjord API client:
// static tokens for development, OAuth2 client credentials for service
// principals, and expiry-aware token caching.
package auth

import (
	"context"
	"errors"
)

// TokenProvider supplies a bearer access token for API requests.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// ErrNoToken indicates the provider has no usable token.
var ErrNoToken = errors.New("auth: no access token available")

// StaticTokenProvider returns a fixed pre-issued token. Intended for
// development setups and short-lived scripts.
type StaticTokenProvider struct {
	token string
}

// NewStaticTokenProvider creates a provider around a pre-issued token.
func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{token: token}
}

func (p *StaticTokenProvider) AccessToken(ctx context.Context) (string, error) {
	if p.token == "" {
		return "", ErrNoToken
	}
	return p.token, nil
}

package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentialsConfig configures OAuth2 client-credentials
// authentication for a service principal.
type ClientCredentialsConfig struct {
	// TokenURL is the identity provider's token endpoint.
	TokenURL string

	// ClientID and ClientSecret identify the service principal.
	ClientID     string
	ClientSecret string

	// Scopes to request, e.g. "fjord:read fjord:write".
	Scopes []string
}

// ClientCredentialsProvider obtains tokens through the OAuth2
// client-credentials flow. Tokens are refreshed automatically when they
// expire.
type ClientCredentialsProvider struct {
	source oauth2.TokenSource
}

// NewClientCredentialsProvider creates a provider for a service principal.
func NewClientCredentialsProvider(cfg ClientCredentialsConfig) (*ClientCredentialsProvider, error) {
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("auth: token URL is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("auth: client ID and secret are required")
	}

	cc := &clientcredentials.Config{
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       cfg.Scopes,
	}

	// The reuse wrapper caches the token until its expiry and serializes
	// concurrent refreshes.
	return &ClientCredentialsProvider{
		source: oauth2.ReuseTokenSource(nil, cc.TokenSource(context.Background())),
	}, nil
}

func (p *ClientCredentialsProvider) AccessToken(ctx context.Context) (string, error) {
	token, err := p.source.Token()
	if err != nil {
		return "", fmt.Errorf("auth: fetch token: %w", err)
	}
	return token.AccessToken, nil
}

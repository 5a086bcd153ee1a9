package auth

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultExpirySkew is subtracted from a token's expiry so a token is
// refreshed before it actually lapses mid-request.
const DefaultExpirySkew = 30 * time.Second

// fallbackTokenTTL caches opaque (non-JWT) tokens for a short while.
const fallbackTokenTTL = time.Minute

// CachingProvider wraps another provider and reuses its token until the
// token's JWT exp claim (minus a skew) passes. Tokens that are not JWTs,
// or carry no exp claim, are cached briefly.
type CachingProvider struct {
	inner TokenProvider
	skew  time.Duration

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	now func() time.Time
}

// NewCachingProvider wraps inner with expiry-aware caching. A skew of zero
// selects DefaultExpirySkew.
func NewCachingProvider(inner TokenProvider, skew time.Duration) *CachingProvider {
	if skew <= 0 {
		skew = DefaultExpirySkew
	}
	return &CachingProvider{
		inner: inner,
		skew:  skew,
		now:   time.Now,
	}
}

func (p *CachingProvider) AccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Before(p.expiresAt) {
		return p.token, nil
	}

	token, err := p.inner.AccessToken(ctx)
	if err != nil {
		return "", err
	}

	p.token = token
	p.expiresAt = p.expiryOf(token)
	return token, nil
}

func (p *CachingProvider) expiryOf(token string) time.Time {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return p.now().Add(fallbackTokenTTL)
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return p.now().Add(fallbackTokenTTL)
	}
	return exp.Time.Add(-p.skew)
}

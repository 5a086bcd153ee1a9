package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestStaticTokenProvider(t *testing.T) {
	p := NewStaticTokenProvider("abc123")
	token, err := p.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if token != "abc123" {
		t.Errorf("AccessToken() = %q, want %q", token, "abc123")
	}

	empty := NewStaticTokenProvider("")
	if _, err := empty.AccessToken(context.Background()); !errors.Is(err, ErrNoToken) {
		t.Errorf("empty provider error = %v, want ErrNoToken", err)
	}
}

func TestClientCredentialsProvider_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientCredentialsConfig
	}{
		{name: "missing token URL", cfg: ClientCredentialsConfig{ClientID: "id", ClientSecret: "secret"}},
		{name: "missing client ID", cfg: ClientCredentialsConfig{TokenURL: "https://idp/token", ClientSecret: "secret"}},
		{name: "missing secret", cfg: ClientCredentialsConfig{TokenURL: "https://idp/token", ClientID: "id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClientCredentialsProvider(tt.cfg); err == nil {
				t.Error("NewClientCredentialsProvider() expected error")
			}
		})
	}
}

func TestClientCredentialsProvider_FetchesToken(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "issued-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer server.Close()

	p, err := NewClientCredentialsProvider(ClientCredentialsConfig{
		TokenURL:     server.URL + "/token",
		ClientID:     "svc",
		ClientSecret: "hunter2",
		Scopes:       []string{"fjord:read"},
	})
	if err != nil {
		t.Fatalf("NewClientCredentialsProvider() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		token, err := p.AccessToken(context.Background())
		if err != nil {
			t.Fatalf("AccessToken() error = %v", err)
		}
		if token != "issued-token" {
			t.Errorf("AccessToken() = %q", token)
		}
	}

	if requests != 1 {
		t.Errorf("token endpoint hit %d times, want 1 (unexpired token must be reused)", requests)
	}
}

// countingProvider hands out a fresh token per fetch.
type countingProvider struct {
	fetches int
	token   func(n int) string
	err     error
}

func (p *countingProvider) AccessToken(ctx context.Context) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.fetches++
	return p.token(p.fetches), nil
}

func signedJWT(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "svc@fjorddata.io",
		"exp": expiresAt.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestCachingProvider_ReusesUntilExpiry(t *testing.T) {
	now := time.Now()
	inner := &countingProvider{token: func(n int) string {
		return signedJWT(t, now.Add(time.Hour))
	}}

	p := NewCachingProvider(inner, 30*time.Second)
	p.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		if _, err := p.AccessToken(context.Background()); err != nil {
			t.Fatalf("AccessToken() error = %v", err)
		}
	}
	if inner.fetches != 1 {
		t.Errorf("inner fetched %d times, want 1", inner.fetches)
	}

	// Move the clock past exp minus skew; the next call must refresh
	now = now.Add(time.Hour - 10*time.Second)
	if _, err := p.AccessToken(context.Background()); err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if inner.fetches != 2 {
		t.Errorf("inner fetched %d times after expiry, want 2", inner.fetches)
	}
}

func TestCachingProvider_OpaqueTokenFallback(t *testing.T) {
	now := time.Now()
	inner := &countingProvider{token: func(n int) string { return "not-a-jwt" }}

	p := NewCachingProvider(inner, 0)
	p.now = func() time.Time { return now }

	if _, err := p.AccessToken(context.Background()); err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if _, err := p.AccessToken(context.Background()); err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if inner.fetches != 1 {
		t.Errorf("inner fetched %d times, want 1 (opaque tokens cache briefly)", inner.fetches)
	}

	now = now.Add(2 * time.Minute)
	if _, err := p.AccessToken(context.Background()); err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if inner.fetches != 2 {
		t.Errorf("inner fetched %d times, want 2 after fallback TTL", inner.fetches)
	}
}

func TestCachingProvider_InnerErrorPropagates(t *testing.T) {
	innerErr := errors.New("idp unreachable")
	p := NewCachingProvider(&countingProvider{err: innerErr}, 0)

	if _, err := p.AccessToken(context.Background()); !errors.Is(err, innerErr) {
		t.Errorf("AccessToken() error = %v, want %v", err, innerErr)
	}
}

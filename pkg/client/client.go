// Package client provides the core Fjord HTTP client with request budget
// gating, caching, retry, and error handling.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fjorddata/fjord-go/pkg/cache"
	"github.com/fjorddata/fjord-go/pkg/ratelimit"
)

// DefaultBaseURL is the production Fjord API endpoint.
const DefaultBaseURL = "https://api.fjorddata.io"

// CredentialsProvider supplies bearer tokens for API requests.
// Implementations live in pkg/auth.
type CredentialsProvider interface {
	// AccessToken returns a valid access token, refreshing it if needed.
	AccessToken(ctx context.Context) (string, error)
}

// Client is the main Fjord API client.
type Client struct {
	httpClient *http.Client
	budget     *ratelimit.Tracker
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Project is the Fjord project all requests are scoped to (required).
	Project string

	// BaseURL is the API base URL (default: DefaultBaseURL).
	BaseURL string

	// Credentials supplies bearer tokens (required).
	Credentials CredentialsProvider

	// UserAgent identifies the application.
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	// Redis enables the GET response cache and fleet-shared budget state.
	// Optional: when nil, caching is disabled and budget state is process-local.
	Redis *redis.Client

	// MaxWorkers caps client-wide request parallelism (parallel reads,
	// chunked task execution).
	MaxWorkers int

	// Retry
	MaxRetries     int
	InitialBackoff time.Duration

	// RequestTimeout bounds a single HTTP request.
	RequestTimeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(project string, creds CredentialsProvider, userAgent string) Config {
	return Config{
		Project:        project,
		BaseURL:        DefaultBaseURL,
		Credentials:    creds,
		UserAgent:      userAgent,
		MaxWorkers:     10,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// New creates a new Fjord client.
func New(cfg Config) (*Client, error) {
	if cfg.Project == "" {
		return nil, fmt.Errorf("project is required")
	}

	if cfg.Credentials == nil {
		return nil, fmt.Errorf("credentials provider is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 10
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	logger := log.With().
		Str("component", "fjord-client").
		Str("project", cfg.Project).
		Logger()

	budget := ratelimit.NewTracker(cfg.Redis, logger)

	var cacheManager *cache.Manager
	if cfg.Redis != nil {
		cacheManager = cache.NewManager(cfg.Redis)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		budget: budget,
		cache:  cacheManager,
		config: cfg,
		logger: logger,
	}, nil
}

// Project returns the project the client is scoped to.
func (c *Client) Project() string {
	return c.config.Project
}

// MaxWorkers returns the client-wide parallelism cap.
func (c *Client) MaxWorkers() int {
	return c.config.MaxWorkers
}

// ProjectPath builds a project-scoped API path.
//
// Example: ProjectPath("raw", "dbs") -> "/api/v1/projects/my-project/raw/dbs"
func (c *Client) ProjectPath(parts ...string) string {
	segments := append([]string{"api", "v1", "projects", url.PathEscape(c.config.Project)}, parts...)
	return "/" + strings.Join(segments, "/")
}

// Do performs an HTTP request with budget gating, caching, retry, and
// error handling. This is the core request method; a non-2xx response
// is returned as an *APIError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		fjordRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: request budget gate
	allowed, err := c.budget.ShouldAllowRequest(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Budget check failed")
		return nil, fmt.Errorf("budget check: %w", err)
	}
	if !allowed {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Msg("Request blocked by budget tracker")
		fjordRequestsTotal.WithLabelValues(endpoint, "budget_blocked").Inc()
		return nil, ErrBudgetExhausted
	}

	// Step 2: cache lookup (idempotent GETs only)
	var cacheKey cache.CacheKey
	var cachedEntry *cache.CacheEntry
	useCache := c.cache != nil && req.Method == http.MethodGet

	if useCache {
		cacheKey = cache.CacheKey{
			Project:     c.config.Project,
			Endpoint:    endpoint,
			QueryParams: req.URL.Query(),
		}

		cachedEntry, err = c.cache.Get(ctx, cacheKey)
		if err != nil && err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}

		if cachedEntry != nil && cache.ShouldMakeConditionalRequest(cachedEntry) {
			cache.AddConditionalHeaders(req, cachedEntry)
			cache.ConditionalRequestsSent.Inc()
			c.logger.Debug().
				Str("endpoint", endpoint).
				Str("etag", cachedEntry.ETag).
				Msg("Making conditional request")
		}
	}

	// Step 3: auth and standard headers
	token, err := c.config.Credentials.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire access token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Msg("Executing request")

	// Step 4: execute with retry
	var resp *http.Response

	retryErr := retryWithBackoff(ctx, c.config.MaxRetries, func() error {
		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return fmt.Errorf("rewind request body: %w", bodyErr)
			}
			attemptReq.Body = body
		}

		var reqErr error
		resp, reqErr = c.httpClient.Do(attemptReq)
		if reqErr != nil {
			c.logger.Error().Err(reqErr).Str("endpoint", endpoint).Msg("HTTP request failed")
			fjordErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			fjordRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return reqErr
		}

		// Track the budget headers on every response
		if err := c.budget.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update budget from headers")
		}

		// 304 Not Modified is a success (cache revalidation)
		if resp.StatusCode == http.StatusNotModified {
			return nil
		}

		if resp.StatusCode >= 400 {
			apiErr := parseAPIError(resp)
			class := apiErr.Class()
			fjordErrorsTotal.WithLabelValues(string(class)).Inc()
			fjordRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(class)).
				Str("request_id", apiErr.RequestID).
				Msg("Request error")

			return apiErr
		}

		fjordRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()
		return nil
	})

	if retryErr != nil {
		return nil, retryErr
	}

	// Step 5: 304 Not Modified - serve from cache
	if resp.StatusCode == http.StatusNotModified {
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")
		fjordRequestsTotal.WithLabelValues(endpoint, "304").Inc()
		cache.NotModifiedResponses.Inc()

		if useCache && cachedEntry != nil {
			if expiresStr := resp.Header.Get("Expires"); expiresStr != "" {
				if newExpires, err := http.ParseTime(expiresStr); err == nil {
					if err := c.cache.UpdateTTL(ctx, cacheKey, newExpires); err != nil {
						c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
					}
				}
			}

			resp.Body.Close()
			return cache.EntryToResponse(cachedEntry), nil
		}

		// 304 without a cached entry should not happen; surface as-is
		return resp, nil
	}

	// Step 6: fill cache on success
	if useCache && resp.StatusCode == http.StatusOK {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if entry.TTL() > 0 {
			if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to cache response")
			} else {
				c.logger.Debug().
					Str("endpoint", endpoint).
					Dur("ttl", entry.TTL()).
					Msg("Cached response")
			}
		}
	}

	return resp, nil
}

// Get performs a GET request against an API endpoint path.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (*http.Response, error) {
	u := c.config.BaseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// GetJSON performs a GET request and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	resp, err := c.Get(ctx, endpoint, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, err = io.Copy(io.Discard, resp.Body)
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// PostJSON performs a POST request with a JSON body and decodes the JSON
// response into out (unless out is nil). Mutating Fjord endpoints,
// including deletes, are POSTs.
func (c *Client) PostJSON(ctx context.Context, endpoint string, body any, out any) error {
	var payload []byte
	var err error
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, err = io.Copy(io.Discard, resp.Body)
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Close closes the client and releases resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager, or nil when caching is disabled
// (for testing).
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}

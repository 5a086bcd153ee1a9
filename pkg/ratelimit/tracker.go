package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for budget tracking.
var (
	fjordBudgetRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fjord_budget_requests_remaining",
		Help: "Number of requests remaining in the current Fjord budget window",
	})

	fjordBudgetBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fjord_budget_blocks_total",
		Help: "Total number of requests blocked due to critical budget",
	})

	fjordBudgetThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fjord_budget_throttles_total",
		Help: "Total number of requests throttled due to warning budget",
	})
)

// Tracker monitors the Fjord request budget and gates requests.
// With a Redis client the state is shared across client instances;
// without one the tracker falls back to in-process state.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger

	mu    sync.Mutex
	local *BudgetState
}

// NewTracker creates a new budget tracker. redisClient may be nil, in
// which case the state is process-local.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// defaultState is the state assumed before any header has been seen.
func defaultState() *BudgetState {
	return &BudgetState{
		RequestsRemaining: 100,
		ResetAt:           time.Now().Add(60 * time.Second),
		LastUpdate:        time.Now(),
		IsHealthy:         true,
	}
}

// GetState retrieves the current budget state.
// Returns a default healthy state if no data exists yet.
func (t *Tracker) GetState(ctx context.Context) (*BudgetState, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.local == nil {
			return defaultState(), nil
		}
		state := *t.local
		return &state, nil
	}

	remaining, err := t.redis.Get(ctx, RedisKeyBudgetRemaining).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get budget remaining: %w", err)
	}

	resetTimestamp, err := t.redis.Get(ctx, RedisKeyResetTimestamp).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get reset timestamp: %w", err)
	}

	lastUpdateStr, err := t.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	// If no state exists in Redis, return default healthy state
	if err == redis.Nil {
		t.logger.Debug().Msg("No budget state in Redis, returning default healthy state")
		return defaultState(), nil
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	state := &BudgetState{
		RequestsRemaining: remaining,
		ResetAt:           time.Unix(resetTimestamp, 0),
		LastUpdate:        lastUpdate,
	}
	state.UpdateHealth()

	return state, nil
}

// UpdateFromHeaders parses the budget headers and updates the shared state.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get("X-Request-Budget-Remain")
	if remainStr == "" {
		// Header not present - some endpoints are exempt from budgeting
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse X-Request-Budget-Remain header: %w", err)
	}

	resetStr := headers.Get("X-Request-Budget-Reset")
	if resetStr == "" {
		return fmt.Errorf("X-Request-Budget-Reset header missing")
	}

	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return fmt.Errorf("parse X-Request-Budget-Reset header: %w", err)
	}

	now := time.Now()
	state := &BudgetState{
		RequestsRemaining: remain,
		ResetAt:           now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate:        now,
	}
	state.UpdateHealth()

	if t.redis == nil {
		t.mu.Lock()
		t.local = state
		t.mu.Unlock()
	} else {
		// Store in Redis atomically
		pipe := t.redis.Pipeline()
		pipe.Set(ctx, RedisKeyBudgetRemaining, remain, 0)
		pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.Unix(), 0)

		lastUpdateJSON, err := json.Marshal(state.LastUpdate)
		if err != nil {
			return fmt.Errorf("marshal last update: %w", err)
		}
		pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, 0)

		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("store budget state in redis: %w", err)
		}
	}

	fjordBudgetRemaining.Set(float64(remain))

	logEvent := t.logger.Info().
		Int("requests_remaining", remain).
		Time("reset_at", state.ResetAt).
		Bool("is_healthy", state.IsHealthy)

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("requests_remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Request budget CRITICAL - requests will be blocked")
	} else if state.NeedsThrottling() {
		t.logger.Warn().
			Int("requests_remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Request budget WARNING - requests will be throttled")
	} else {
		logEvent.Msg("Request budget state updated")
	}

	return nil
}

// ShouldAllowRequest checks if a request should be allowed based on the
// current budget state. Returns false if the request should be blocked.
// May sleep for throttling when in the warning state.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get budget state: %w", err)
	}

	// Critical: block all requests
	if state.NeedsCriticalBlock() {
		waitDuration := state.TimeUntilReset()

		t.logger.Error().
			Int("requests_remaining", state.RequestsRemaining).
			Dur("wait_duration", waitDuration).
			Msg("Request budget critical - blocking request")

		fjordBudgetBlocksTotal.Inc()
		return false, nil
	}

	// Warning: apply throttling (1 second pause)
	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("requests_remaining", state.RequestsRemaining).
			Msg("Request budget warning - throttling request")

		fjordBudgetThrottlesTotal.Inc()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}

	return true, nil
}

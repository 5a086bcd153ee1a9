// Package ratelimit implements request budget tracking and request gating
// for the Fjord API. It monitors the X-Request-Budget-Remain and
// X-Request-Budget-Reset headers to keep clients inside their per-project
// request budget before the API starts rejecting with 429.
package ratelimit

import (
	"time"
)

// Redis keys for budget state storage. State is shared across all client
// instances of a process fleet via Redis.
const (
	RedisKeyBudgetRemaining = "fjord:budget:requests_remaining"
	RedisKeyResetTimestamp  = "fjord:budget:reset_timestamp"
	RedisKeyLastUpdate      = "fjord:budget:last_update"
)

// Thresholds for budget decisions.
const (
	// BudgetThresholdCritical blocks all requests when the remaining budget
	// falls below this value, so a last reserve is kept for interactive use.
	BudgetThresholdCritical = 5

	// BudgetThresholdWarning applies throttling when the remaining budget
	// falls below this value.
	BudgetThresholdWarning = 20

	// BudgetThresholdHealthy indicates normal operation.
	BudgetThresholdHealthy = 50
)

// BudgetState represents the current request budget state.
type BudgetState struct {
	// RequestsRemaining is the number of requests left in the current
	// budget window. Extracted from the X-Request-Budget-Remain header.
	RequestsRemaining int `json:"requests_remaining"`

	// ResetAt is the timestamp when the budget window resets.
	// Calculated from the X-Request-Budget-Reset header (seconds until reset).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is the timestamp when this state was last updated.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy indicates whether the budget is in a healthy state.
	// True when RequestsRemaining >= BudgetThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *BudgetState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked due to
// a nearly exhausted budget.
func (s *BudgetState) NeedsCriticalBlock() bool {
	return s.RequestsRemaining < BudgetThresholdCritical
}

// NeedsThrottling returns true if requests should be throttled due to the
// warning threshold.
func (s *BudgetState) NeedsThrottling() bool {
	return s.RequestsRemaining < BudgetThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the budget window resets.
// Returns 0 if the reset time has already passed.
func (s *BudgetState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on current RequestsRemaining.
func (s *BudgetState) UpdateHealth() {
	s.IsHealthy = s.RequestsRemaining >= BudgetThresholdHealthy
}

package core

import (
	"context"
	"time"

	"wellness/internal/types"
)

// Authenticator decouples the HTTP layer from session storage so handlers
// can be tested without a database.
type Authenticator interface {
	// ResolveToken maps a bearer token to the signed-in user.
	//
	// Distinct error codes:
	//   - auth_token_invalid: unknown or revoked token.
	//   - auth_session_expired: the session exists but has expired.
	ResolveToken(ctx context.Context, token string) (*types.Actor, error)
}

// RateLimitStore abstracts the backing store for rate limiting.
// Production uses Redis; single-instance deployments use the in-memory store.
type RateLimitStore interface {
	// IncrementAndCheck atomically increments the counter for key and checks
	// it against limit within the current window.
	IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error)
}

// RateLimitResult contains the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	// ResetAt is when the current window ends.
	ResetAt time.Time
}

// MetricsCollector records API request telemetry.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

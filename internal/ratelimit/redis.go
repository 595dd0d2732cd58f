// Package ratelimit holds the Redis-backed coordination primitives: the
// fixed-window request limiter and the dispatcher run lock. An in-process
// limiter covers single-instance deployments without Redis.
package ratelimit

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"wellness/internal/types"
)

// NewClient parses a redis:// or rediss:// URL and returns a client.
// It does not dial; use Probe to verify connectivity.
func NewClient(url types.SecretString) (*redis.Client, error) {
	opts, err := redis.ParseURL(url.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

type pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// Probe reports Redis health for GET /health.
type Probe struct {
	client pinger
}

func NewProbe(client pinger) *Probe {
	return &Probe{client: client}
}

func (p *Probe) Name() string { return "redis" }

func (p *Probe) Check(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

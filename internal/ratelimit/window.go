package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"wellness/internal/core"
	"wellness/internal/types"
)

const keyPrefix = "ratelimit:"

// fixedWindowScript increments the window counter, starting the window on the
// first hit, and returns the count with the remaining window in milliseconds.
const fixedWindowScript = `
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`

// RedisStore is a fixed-window core.RateLimitStore shared by every API
// instance.
type RedisStore struct {
	client redis.Scripter
	script *redis.Script
	clock  types.Clock
}

func NewRedisStore(client redis.Scripter, clock types.Clock) *RedisStore {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &RedisStore{
		client: client,
		script: redis.NewScript(fixedWindowScript),
		clock:  clock,
	}
}

func (s *RedisStore) IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (core.RateLimitResult, error) {
	if key == "" {
		return core.RateLimitResult{}, errors.New("rate limiter key is empty")
	}
	if limit <= 0 || window <= 0 {
		return core.RateLimitResult{}, errors.New("rate limiter limit and window must be positive")
	}

	vals, err := s.script.Run(ctx, s.client, []string{keyPrefix + key}, window.Milliseconds()).Slice()
	if err != nil {
		return core.RateLimitResult{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(vals) != 2 {
		return core.RateLimitResult{}, fmt.Errorf("rate limit script returned %d values", len(vals))
	}
	count, ok1 := vals[0].(int64)
	ttlMs, ok2 := vals[1].(int64)
	if !ok1 || !ok2 {
		return core.RateLimitResult{}, fmt.Errorf("rate limit script returned unexpected types %T, %T", vals[0], vals[1])
	}

	return core.RateLimitResult{
		Allowed:   count <= int64(limit),
		Remaining: max(limit-int(count), 0),
		ResetAt:   s.clock.Now().Add(time.Duration(ttlMs) * time.Millisecond),
	}, nil
}

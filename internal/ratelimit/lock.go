package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const lockPrefix = "lock:"

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// LockClient is the subset of *redis.Client the locker needs.
type LockClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Locker is a best-effort mutual exclusion lock. The owner token is stored
// as the value so only the holder can release it; the TTL frees locks left
// behind by crashed holders.
type Locker struct {
	client LockClient
	script *redis.Script
}

func NewLocker(client LockClient) *Locker {
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// Acquire takes key for owner. It returns false without error when another
// owner holds it.
func (l *Locker) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if key == "" || owner == "" {
		return false, errors.New("lock key and owner are required")
	}
	if ttl <= 0 {
		return false, errors.New("lock ttl must be positive")
	}
	return l.client.SetNX(ctx, lockPrefix+key, owner, ttl).Result()
}

// Release drops key if owner still holds it.
func (l *Locker) Release(ctx context.Context, key, owner string) error {
	if key == "" || owner == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{lockPrefix + key}, owner).Err()
}

package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellness/internal/types"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// fakeRedis answers script calls through evalFn. Methods the code under test
// never calls fall through to the nil embedded interface and panic.
type fakeRedis struct {
	redis.Scripter
	evalFn  func(keys []string, args []interface{}) (interface{}, error)
	setNX   map[string]string
	setNXFn func(key string) (bool, error)
	keys    []string
}

func (f *fakeRedis) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.keys = append(f.keys, keys...)
	v, err := f.evalFn(keys, args)
	return redis.NewCmdResult(v, err)
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return f.EvalSha(ctx, script, keys, args...)
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	if f.setNXFn != nil {
		ok, err := f.setNXFn(key)
		return redis.NewBoolResult(ok, err)
	}
	if _, held := f.setNX[key]; held {
		return redis.NewBoolResult(false, nil)
	}
	f.setNX[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func TestRedisStore_IncrementAndCheck(t *testing.T) {
	count := int64(0)
	fake := &fakeRedis{evalFn: func(_ []string, args []interface{}) (interface{}, error) {
		count++
		assert.Equal(t, int64(60000), args[0])
		return []interface{}{count, int64(45000)}, nil
	}}
	store := NewRedisStore(fake, types.FixedClock{T: testNow})
	ctx := context.Background()

	first, err := store.IncrementAndCheck(ctx, "xp:u1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, first.Allowed)
	assert.Equal(t, 1, first.Remaining)
	assert.Equal(t, testNow.Add(45*time.Second), first.ResetAt)
	assert.Equal(t, "ratelimit:xp:u1", fake.keys[0])

	_, err = store.IncrementAndCheck(ctx, "xp:u1", 2, time.Minute)
	require.NoError(t, err)

	third, err := store.IncrementAndCheck(ctx, "xp:u1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, third.Allowed)
	assert.Zero(t, third.Remaining)
}

func TestRedisStore_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("redis down", func(t *testing.T) {
		fake := &fakeRedis{evalFn: func([]string, []interface{}) (interface{}, error) {
			return nil, errors.New("connection refused")
		}}
		_, err := NewRedisStore(fake, nil).IncrementAndCheck(ctx, "k", 1, time.Minute)
		require.ErrorContains(t, err, "connection refused")
	})

	t.Run("malformed reply", func(t *testing.T) {
		fake := &fakeRedis{evalFn: func([]string, []interface{}) (interface{}, error) {
			return []interface{}{"1", int64(5)}, nil
		}}
		_, err := NewRedisStore(fake, nil).IncrementAndCheck(ctx, "k", 1, time.Minute)
		require.Error(t, err)
	})

	t.Run("bad arguments", func(t *testing.T) {
		store := NewRedisStore(&fakeRedis{}, nil)
		_, err := store.IncrementAndCheck(ctx, "", 1, time.Minute)
		require.Error(t, err)
		_, err = store.IncrementAndCheck(ctx, "k", 0, time.Minute)
		require.Error(t, err)
	})
}

func TestLocker_AcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRedis{setNX: map[string]string{}}
	fake.evalFn = func(keys []string, args []interface{}) (interface{}, error) {
		if fake.setNX[keys[0]] == args[0] {
			delete(fake.setNX, keys[0])
			return int64(1), nil
		}
		return int64(0), nil
	}
	locker := NewLocker(fake)

	ok, err := locker.Acquire(ctx, "alert-dispatch", "w1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "w1", fake.setNX["lock:alert-dispatch"])

	ok, err = locker.Acquire(ctx, "alert-dispatch", "w2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// A non-owner release leaves the lock in place.
	require.NoError(t, locker.Release(ctx, "alert-dispatch", "w2"))
	assert.Equal(t, "w1", fake.setNX["lock:alert-dispatch"])

	require.NoError(t, locker.Release(ctx, "alert-dispatch", "w1"))
	assert.Empty(t, fake.setNX)
}

func TestLocker_Validation(t *testing.T) {
	locker := NewLocker(&fakeRedis{setNX: map[string]string{}})
	_, err := locker.Acquire(context.Background(), "", "w1", time.Minute)
	require.Error(t, err)
	_, err = locker.Acquire(context.Background(), "k", "w1", 0)
	require.Error(t, err)
	assert.NoError(t, locker.Release(context.Background(), "k", ""))
}

func TestLocker_BackendError(t *testing.T) {
	fake := &fakeRedis{setNXFn: func(string) (bool, error) { return false, errors.New("timeout") }}
	ok, err := NewLocker(fake).Acquire(context.Background(), "k", "w1", time.Minute)
	require.Error(t, err)
	assert.False(t, ok)
}

func TestProbe(t *testing.T) {
	p := NewProbe(&fakeRedis{})
	assert.Equal(t, "redis", p.Name())
	assert.NoError(t, p.Check(context.Background()))
}

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func TestMemoryStore_FixedWindow(t *testing.T) {
	clock := &stepClock{now: testNow}
	store := NewMemoryStore(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := store.IncrementAndCheck(ctx, "u1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
		assert.Equal(t, testNow.Add(time.Minute), res.ResetAt)
	}

	res, _ := store.IncrementAndCheck(ctx, "u1", 3, time.Minute)
	assert.False(t, res.Allowed)

	other, _ := store.IncrementAndCheck(ctx, "u2", 3, time.Minute)
	assert.True(t, other.Allowed, "keys are independent")

	clock.now = testNow.Add(time.Minute)
	res, _ = store.IncrementAndCheck(ctx, "u1", 3, time.Minute)
	assert.True(t, res.Allowed, "a new window starts once the old one ends")
	assert.Equal(t, 2, res.Remaining)
}

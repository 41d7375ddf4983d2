package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/wastebill/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestLockerSingleHolder(t *testing.T) {
	srv, client := newRedis(t)
	locker := NewLocker(client)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "issue:2024-03", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	_, ok, err = locker.TryLock(ctx, "issue:2024-03", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not acquire")

	require.NoError(t, locker.Release(ctx, "issue:2024-03", "not-the-owner"))
	assert.True(t, srv.Exists("issue:2024-03"), "foreign token must not release")

	require.NoError(t, locker.Release(ctx, "issue:2024-03", token))
	assert.False(t, srv.Exists("issue:2024-03"))

	_, ok, err = locker.TryLock(ctx, "issue:2024-03", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockerExpires(t *testing.T) {
	srv, client := newRedis(t)
	locker := NewLocker(client)
	ctx := context.Background()

	_, ok, err := locker.TryLock(ctx, "issue:2024-04", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	srv.FastForward(2 * time.Second)

	_, ok, err = locker.TryLock(ctx, "issue:2024-04", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockerValidation(t *testing.T) {
	var nilLocker *Locker
	_, _, err := nilLocker.TryLock(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrLockNotConfigured)
	assert.NoError(t, nilLocker.Release(context.Background(), "k", "t"))

	_, client := newRedis(t)
	locker := NewLocker(client)
	_, _, err = locker.TryLock(context.Background(), "", time.Second)
	assert.ErrorIs(t, err, ErrLockKeyEmpty)
	_, _, err = locker.TryLock(context.Background(), "k", 0)
	assert.ErrorIs(t, err, ErrLockTTLInvalid)
}

func TestTokenBucketExhaustsBurst(t *testing.T) {
	_, client := newRedis(t)
	bucket := NewTokenBucket(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := bucket.Allow(ctx, "bucket:a", 0.01, 3)
		require.NoError(t, err)
		require.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 3, res.Limit)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := bucket.Allow(ctx, "bucket:a", 0.01, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	other, err := bucket.Allow(ctx, "bucket:b", 0.01, 3)
	require.NoError(t, err)
	assert.True(t, other.Allowed, "buckets are keyed independently")
}

func TestTokenBucketValidation(t *testing.T) {
	var nilBucket *TokenBucket
	_, err := nilBucket.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, ErrLimiterNotConfigured)

	_, client := newRedis(t)
	bucket := NewTokenBucket(client)
	_, err = bucket.Allow(context.Background(), "", 1, 1)
	assert.ErrorIs(t, err, ErrLimiterKeyEmpty)
	_, err = bucket.Allow(context.Background(), "k", 0, 1)
	assert.ErrorIs(t, err, ErrLimiterRateInvalid)
	_, err = bucket.Allow(context.Background(), "k", 1, 0)
	assert.ErrorIs(t, err, ErrLimiterBurstInvalid)
}

func TestCallbackLimiter(t *testing.T) {
	cfg := config.Config{Mpesa: config.MpesaConfig{CallbackRate: 0.01, CallbackBurst: 2}}

	disabled := NewCallbackLimiter(CallbackLimiterParams{Cfg: cfg, Log: zap.NewNop()})
	for i := 0; i < 5; i++ {
		assert.True(t, disabled.Allow(context.Background(), "10.0.0.1").Allowed)
	}

	_, client := newRedis(t)
	limiter := NewCallbackLimiter(CallbackLimiterParams{
		Cfg:    cfg,
		Log:    zap.NewNop(),
		Bucket: NewTokenBucket(client),
	})
	ctx := context.Background()
	assert.True(t, limiter.Allow(ctx, "10.0.0.1").Allowed)
	assert.True(t, limiter.Allow(ctx, "10.0.0.1").Allowed)
	assert.False(t, limiter.Allow(ctx, "10.0.0.1").Allowed)
	assert.True(t, limiter.Allow(ctx, "10.0.0.2").Allowed)

	gone, err := miniredis.Run()
	require.NoError(t, err)
	goneClient := redis.NewClient(&redis.Options{Addr: gone.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = goneClient.Close() })
	gone.Close()

	unreachable := NewCallbackLimiter(CallbackLimiterParams{
		Cfg:    cfg,
		Log:    zap.NewNop(),
		Bucket: NewTokenBucket(goneClient),
	})
	assert.True(t, unreachable.Allow(ctx, "10.0.0.1").Allowed, "unreachable redis fails open")
}

func TestNewClientDisabledWithoutAddr(t *testing.T) {
	assert.Nil(t, NewClient(nil, config.Config{}, zap.NewNop()))
	assert.Nil(t, NewLocker(nil))
	assert.Nil(t, NewTokenBucket(nil))
}

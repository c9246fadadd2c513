package ratelimit

import (
	"context"
	"testing"
	"time"

	"storefront-auth/pkg/apperror"
	"storefront-auth/pkg/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLimiter(t *testing.T, max int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := cache.NewRedis(client, "")
	return New(store, Config{Max: max, Window: 15 * time.Minute}, zap.NewNop()), mr
}

func TestAllowUpToThreshold(t *testing.T) {
	l, _ := newLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Allow(ctx, "login", ScopeIP, "10.0.0.1"))
	}

	err := l.Allow(ctx, "login", ScopeIP, "10.0.0.1")
	require.Error(t, err)

	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.KindRateLimited, appErr.Kind)
	assert.Equal(t, 15*time.Minute, appErr.RetryAfter)
}

func TestKeysAreIndependent(t *testing.T) {
	l, _ := newLimiter(t, 1)
	ctx := context.Background()

	require.NoError(t, l.Allow(ctx, "login", ScopeIP, "10.0.0.1"))
	require.NoError(t, l.Allow(ctx, "login", ScopeEmail, "10.0.0.1"))
	require.NoError(t, l.Allow(ctx, "verify-otp", ScopeIP, "10.0.0.1"))
	require.NoError(t, l.Allow(ctx, "login", ScopeIP, "10.0.0.2"))

	assert.Error(t, l.Allow(ctx, "login", ScopeIP, "10.0.0.1"))
}

func TestWindowDecays(t *testing.T) {
	l, mr := newLimiter(t, 1)
	ctx := context.Background()

	require.NoError(t, l.Allow(ctx, "login", ScopeEmail, "a@example.com"))
	require.Error(t, l.Allow(ctx, "login", ScopeEmail, "a@example.com"))

	mr.FastForward(15*time.Minute + time.Second)

	assert.NoError(t, l.Allow(ctx, "login", ScopeEmail, "a@example.com"))
}

func TestFailsOpenWhenStoreDown(t *testing.T) {
	l, mr := newLimiter(t, 1)
	mr.Close()

	for i := 0; i < 5; i++ {
		assert.NoError(t, l.Allow(context.Background(), "login", ScopeIP, "10.0.0.1"))
	}
}

func TestNoopStoreSkipsCheck(t *testing.T) {
	l := New(cache.NewNoop(), Config{Max: 1, Window: time.Minute}, zap.NewNop())

	for i := 0; i < 5; i++ {
		assert.NoError(t, l.Allow(context.Background(), "login", ScopeIP, "10.0.0.1"))
	}
}

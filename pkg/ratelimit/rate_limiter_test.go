package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLimiter(t *testing.T, config *Config) *RateLimiter {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRateLimiter(client, config)
}

func TestIsAllowedEnforcesScopeLimit(t *testing.T) {
	limiter := setupLimiter(t, &Config{
		Enabled:         true,
		WindowDuration:  time.Minute,
		DefaultRequests: 100,
		CancelRequests:  3,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.IsAllowed(ctx, "10.0.0.1", RateLimitTypeCancel)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should pass", i+1)
		assert.Equal(t, 3, result.Limit)
	}

	result, err := limiter.IsAllowed(ctx, "10.0.0.1", RateLimitTypeCancel)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
}

func TestIsAllowedCountsEveryRequestInSameSecond(t *testing.T) {
	limiter := setupLimiter(t, &Config{
		Enabled:         true,
		WindowDuration:  time.Minute,
		DefaultRequests: 5,
	})
	ctx := context.Background()

	// A burst inside one wall-clock second must count request by request,
	// not collapse into a single window entry.
	allowed := 0
	for i := 0; i < 8; i++ {
		result, err := limiter.IsAllowed(ctx, "10.0.0.1", RateLimitTypeDefault)
		require.NoError(t, err)
		if result.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed)
}

func TestIsAllowedTracksClientsSeparately(t *testing.T) {
	limiter := setupLimiter(t, &Config{
		Enabled:        true,
		WindowDuration: time.Minute,
		CancelRequests: 1,
	})
	ctx := context.Background()

	result, err := limiter.IsAllowed(ctx, "10.0.0.1", RateLimitTypeCancel)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = limiter.IsAllowed(ctx, "10.0.0.1", RateLimitTypeCancel)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	// Another client has its own budget, and so does another scope.
	result, err = limiter.IsAllowed(ctx, "10.0.0.2", RateLimitTypeCancel)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestIsAllowedSkipsWhitelistedAndDisabled(t *testing.T) {
	ctx := context.Background()

	limiter := setupLimiter(t, &Config{
		Enabled:        true,
		WindowDuration: time.Minute,
		CancelRequests: 1,
		WhitelistedIPs: []string{"192.168.0.10"},
	})
	for i := 0; i < 5; i++ {
		result, err := limiter.IsAllowed(ctx, "192.168.0.10", RateLimitTypeCancel)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	disabled := setupLimiter(t, &Config{
		Enabled:        false,
		WindowDuration: time.Minute,
		CancelRequests: 1,
	})
	for i := 0; i < 5; i++ {
		result, err := disabled.IsAllowed(ctx, "10.0.0.1", RateLimitTypeCancel)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}
}

package seatlock

import (
	"context"
	"sync"
	"testing"
	"time"

	"transitly/internal/shared/apperrors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLockService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewService(client, 0), mr
}

func TestAcquireFirstWins(t *testing.T) {
	svc, _ := setupLockService(t)
	ctx := context.Background()
	key := TripSeatKey(1, 3)

	result, err := svc.Acquire(ctx, key, "session-a", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, Acquired, result)

	result, err = svc.Acquire(ctx, key, "session-b", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, LockedByOther, result)
}

func TestAcquireAlreadyOwnedDoesNotExtendTTL(t *testing.T) {
	svc, mr := setupLockService(t)
	ctx := context.Background()
	key := TripSeatKey(1, 1)

	_, err := svc.Acquire(ctx, key, "session-a", 30*time.Second)
	require.NoError(t, err)

	// Let half the TTL elapse, then re-acquire with a longer TTL.
	mr.FastForward(15 * time.Second)
	result, err := svc.Acquire(ctx, key, "session-a", 300*time.Second)
	require.NoError(t, err)
	assert.Equal(t, AlreadyOwned, result)

	// The original deadline still stands.
	mr.FastForward(16 * time.Second)
	assert.False(t, mr.Exists(key))
}

func TestExtendRefreshesOwnLockOnly(t *testing.T) {
	svc, mr := setupLockService(t)
	ctx := context.Background()
	key := TripSeatKey(2, 5)

	_, err := svc.Acquire(ctx, key, "session-a", 30*time.Second)
	require.NoError(t, err)

	result, err := svc.Extend(ctx, key, "session-b", 60*time.Second)
	require.NoError(t, err)
	assert.Equal(t, ExtendNotOwner, result)

	result, err = svc.Extend(ctx, key, "session-a", 60*time.Second)
	require.NoError(t, err)
	assert.Equal(t, Extended, result)

	mr.FastForward(45 * time.Second)
	assert.True(t, mr.Exists(key))

	mr.FastForward(20 * time.Second)
	result, err = svc.Extend(ctx, key, "session-a", 60*time.Second)
	require.NoError(t, err)
	assert.Equal(t, ExtendNotFound, result)
}

func TestReleaseIsOwnerChecked(t *testing.T) {
	svc, mr := setupLockService(t)
	ctx := context.Background()
	key := TripSeatKey(3, 7)

	_, err := svc.Acquire(ctx, key, "session-a", 30*time.Second)
	require.NoError(t, err)

	result, err := svc.Release(ctx, key, "session-b")
	require.NoError(t, err)
	assert.Equal(t, ReleaseNotOwner, result)
	assert.True(t, mr.Exists(key))

	result, err = svc.Release(ctx, key, "session-a")
	require.NoError(t, err)
	assert.Equal(t, Released, result)
	assert.False(t, mr.Exists(key))

	result, err = svc.Release(ctx, key, "session-a")
	require.NoError(t, err)
	assert.Equal(t, ReleaseNotFound, result)
}

func TestForceExpireIgnoresOwner(t *testing.T) {
	svc, mr := setupLockService(t)
	ctx := context.Background()
	key := TripSeatKey(4, 2)

	_, err := svc.Acquire(ctx, key, "session-a", 30*time.Second)
	require.NoError(t, err)

	result, err := svc.ForceExpire(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, Released, result)
	assert.False(t, mr.Exists(key))
}

func TestParallelAcquireExactlyOneWinner(t *testing.T) {
	svc, _ := setupLockService(t)
	ctx := context.Background()
	key := TripSeatKey(9, 1)

	const contenders = 16
	results := make([]AcquireResult, contenders)
	errs := make([]error, contenders)

	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n], errs[n] = svc.Acquire(ctx, key, "session-"+string(rune('a'+n)), 30*time.Second)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	winners := 0
	for _, r := range results {
		if r == Acquired {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestExistsProbesAnyKey(t *testing.T) {
	svc, _ := setupLockService(t)
	ctx := context.Background()

	k1 := TripSeatKey(1, 1)
	k2 := TripSeatKey(1, 2)

	present, err := svc.Exists(ctx, k1, k2)
	require.NoError(t, err)
	assert.False(t, present)

	_, err = svc.Acquire(ctx, k2, "session-a", 30*time.Second)
	require.NoError(t, err)

	present, err = svc.Exists(ctx, k1, k2)
	require.NoError(t, err)
	assert.True(t, present)
}

func TestCircuitBreakerOpensOnTransportFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	svc := NewService(client, time.Minute)
	ctx := context.Background()

	mr.Close()

	_, err := svc.Acquire(ctx, TripSeatKey(1, 1), "session-a", 30*time.Second)
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))

	// Circuit now open: the next call fails fast without touching redis.
	_, err = svc.Acquire(ctx, TripSeatKey(1, 2), "session-a", 30*time.Second)
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestKeyFormats(t *testing.T) {
	assert.Equal(t, "lock:trip:12:seat:4", TripSeatKey(12, 4))
	assert.Equal(t, "lock:booking:7:cancel", BookingCancelKey(7))
}

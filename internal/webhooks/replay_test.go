package webhooks

import (
	"context"
	"testing"
	"time"

	"transitly/internal/shared/apperrors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupReplayGuard(t *testing.T, ttl time.Duration) (*ReplayGuard, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewReplayGuard(client, ttl), mr
}

func TestConsumeAcceptsNonceOnce(t *testing.T) {
	guard, _ := setupReplayGuard(t, time.Minute)
	ctx := context.Background()

	fresh, err := guard.Consume(ctx, "payment", "1724500000:abcd")
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = guard.Consume(ctx, "payment", "1724500000:abcd")
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestConsumeScopesNonces(t *testing.T) {
	guard, _ := setupReplayGuard(t, time.Minute)
	ctx := context.Background()

	fresh, err := guard.Consume(ctx, "payment", "nonce-1")
	require.NoError(t, err)
	assert.True(t, fresh)

	// The same nonce under another scope is unrelated.
	fresh, err = guard.Consume(ctx, "chat", "nonce-1")
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestConsumeForgetsNonceAfterTTL(t *testing.T) {
	guard, mr := setupReplayGuard(t, 30*time.Second)
	ctx := context.Background()

	fresh, err := guard.Consume(ctx, "payment", "nonce-ttl")
	require.NoError(t, err)
	assert.True(t, fresh)

	mr.FastForward(31 * time.Second)

	// Past the TTL the nonce slot is free again; the signature timestamp
	// window is what keeps old captures out by then.
	fresh, err = guard.Consume(ctx, "payment", "nonce-ttl")
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestConsumeReportsStoreOutageAsRetryable(t *testing.T) {
	guard, mr := setupReplayGuard(t, time.Minute)
	mr.Close()

	_, err := guard.Consume(context.Background(), "payment", "nonce-down")
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
}

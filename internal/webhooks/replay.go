package webhooks

import (
	"context"
	"fmt"
	"time"

	"transitly/internal/shared/apperrors"

	"github.com/redis/go-redis/v9"
)

// ReplayGuard enforces one-time nonces for signed webhook requests. A
// nonce is consumed with SET-if-absent; seeing it again within the TTL
// means the exact request was replayed.
type ReplayGuard struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewReplayGuard creates a replay guard with the given nonce TTL.
func NewReplayGuard(redisClient *redis.Client, ttl time.Duration) *ReplayGuard {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ReplayGuard{redis: redisClient, ttl: ttl}
}

// Consume marks the nonce as seen. Returns false when the nonce was
// already consumed.
func (g *ReplayGuard) Consume(ctx context.Context, scope, nonce string) (bool, error) {
	key := fmt.Sprintf("nonce:%s:%s", scope, nonce)
	fresh, err := g.redis.SetNX(ctx, key, 1, g.ttl).Result()
	if err != nil {
		return false, apperrors.Retryablef("replay guard unavailable: %w", err)
	}
	return fresh, nil
}

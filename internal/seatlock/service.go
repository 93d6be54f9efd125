package seatlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"transitly/internal/shared/apperrors"

	"github.com/redis/go-redis/v9"
)

// AcquireResult is the outcome of an acquire attempt
type AcquireResult int

const (
	Acquired AcquireResult = iota + 1
	AlreadyOwned
	LockedByOther
)

// ExtendResult is the outcome of an extend attempt
type ExtendResult int

const (
	Extended ExtendResult = iota + 1
	ExtendNotOwner
	ExtendNotFound
)

// ReleaseResult is the outcome of a release or force-expire
type ReleaseResult int

const (
	Released ReleaseResult = iota + 1
	ReleaseNotOwner
	ReleaseNotFound
)

// Lua script for atomic acquire. Re-acquire by the same owner does NOT
// extend the TTL beyond what remains; extension is only via extend.
const luaAcquire = `
-- KEYS[1] = lock key
-- ARGV[1] = owner token
-- ARGV[2] = ttl_seconds
local current = redis.call("GET", KEYS[1])
if current == false then
    redis.call("SET", KEYS[1], ARGV[1], "EX", tonumber(ARGV[2]))
    return 1
end
if current == ARGV[1] then
    return 2
end
return 3
`

// Lua script for atomic owner-checked extend
const luaExtend = `
-- KEYS[1] = lock key
-- ARGV[1] = owner token
-- ARGV[2] = ttl_seconds
local current = redis.call("GET", KEYS[1])
if current == false then
    return 3
end
if current ~= ARGV[1] then
    return 2
end
redis.call("EXPIRE", KEYS[1], tonumber(ARGV[2]))
return 1
`

// Lua script for atomic owner-checked release
const luaRelease = `
-- KEYS[1] = lock key
-- ARGV[1] = owner token
local current = redis.call("GET", KEYS[1])
if current == false then
    return 3
end
if current ~= ARGV[1] then
    return 2
end
redis.call("DEL", KEYS[1])
return 1
`

// Lua script for force-expire irrespective of owner. Reserved for
// coordinators that have already proven domain authority.
const luaForceExpire = `
-- KEYS[1] = lock key
if redis.call("DEL", KEYS[1]) == 1 then
    return 1
end
return 3
`

// Service is a thin typed wrapper over the lock store's atomic scripts.
// Every operation is a single script execution; partial states are
// impossible. Lock loss after a store crash is expected and handled by
// the reconciliation loop, not here.
type Service struct {
	redis *redis.Client

	acquireScript *redis.Script
	extendScript  *redis.Script
	releaseScript *redis.Script
	expireScript  *redis.Script

	// Circuit breaker: after a transport failure we stop talking to the
	// store until openUntil passes.
	mu          sync.Mutex
	openUntil   time.Time
	circuitOpen time.Duration
}

// NewService creates a new seat lock service
func NewService(redisClient *redis.Client, circuitOpen time.Duration) *Service {
	return &Service{
		redis:         redisClient,
		acquireScript: redis.NewScript(luaAcquire),
		extendScript:  redis.NewScript(luaExtend),
		releaseScript: redis.NewScript(luaRelease),
		expireScript:  redis.NewScript(luaForceExpire),
		circuitOpen:   circuitOpen,
	}
}

// PreloadScripts loads the Lua scripts into the store's script cache.
// Run() still falls back to inline EVAL when the cache has been flushed.
func (s *Service) PreloadScripts(ctx context.Context) error {
	for _, script := range []*redis.Script{s.acquireScript, s.extendScript, s.releaseScript, s.expireScript} {
		if err := script.Load(ctx, s.redis).Err(); err != nil {
			return fmt.Errorf("failed to load lock script: %w", err)
		}
	}
	return nil
}

// Acquire attempts to take the lock for owner with the given TTL.
func (s *Service) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (AcquireResult, error) {
	code, err := s.run(ctx, s.acquireScript, []string{key}, owner, int(ttl.Seconds()))
	if err != nil {
		return 0, err
	}
	switch code {
	case 1:
		return Acquired, nil
	case 2:
		return AlreadyOwned, nil
	case 3:
		return LockedByOther, nil
	}
	return 0, fmt.Errorf("unexpected acquire result code %d", code)
}

// Extend refreshes the TTL if owner still holds the lock.
func (s *Service) Extend(ctx context.Context, key, owner string, ttl time.Duration) (ExtendResult, error) {
	code, err := s.run(ctx, s.extendScript, []string{key}, owner, int(ttl.Seconds()))
	if err != nil {
		return 0, err
	}
	switch code {
	case 1:
		return Extended, nil
	case 2:
		return ExtendNotOwner, nil
	case 3:
		return ExtendNotFound, nil
	}
	return 0, fmt.Errorf("unexpected extend result code %d", code)
}

// Release deletes the lock if owner holds it.
func (s *Service) Release(ctx context.Context, key, owner string) (ReleaseResult, error) {
	code, err := s.run(ctx, s.releaseScript, []string{key}, owner)
	if err != nil {
		return 0, err
	}
	switch code {
	case 1:
		return Released, nil
	case 2:
		return ReleaseNotOwner, nil
	case 3:
		return ReleaseNotFound, nil
	}
	return 0, fmt.Errorf("unexpected release result code %d", code)
}

// ForceExpire deletes the lock irrespective of owner.
func (s *Service) ForceExpire(ctx context.Context, key string) (ReleaseResult, error) {
	code, err := s.run(ctx, s.expireScript, []string{key})
	if err != nil {
		return 0, err
	}
	switch code {
	case 1:
		return Released, nil
	case 3:
		return ReleaseNotFound, nil
	}
	return 0, fmt.Errorf("unexpected expire result code %d", code)
}

// Exists probes whether any of the given lock keys is still present.
// Used by reconciliation to detect holds orphaned by a store crash.
func (s *Service) Exists(ctx context.Context, keys ...string) (bool, error) {
	if len(keys) == 0 {
		return false, nil
	}
	if err := s.checkCircuit(); err != nil {
		return false, err
	}
	n, err := s.redis.Exists(ctx, keys...).Result()
	if err != nil {
		s.tripCircuit()
		return false, apperrors.Retryablef("lock store probe failed: %w", err)
	}
	return n > 0, nil
}

// run executes a script through the hash cache with inline fallback and
// maps transport failures to retryable errors.
func (s *Service) run(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) (int64, error) {
	if err := s.checkCircuit(); err != nil {
		return 0, err
	}

	result, err := script.Run(ctx, s.redis, keys, args...).Result()
	if err != nil {
		s.tripCircuit()
		return 0, apperrors.Retryablef("lock store unavailable: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected result type from lock script: %T", result)
	}
	return code, nil
}

func (s *Service) checkCircuit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Now().Before(s.openUntil) {
		return apperrors.Retryablef("lock store circuit open until %s", s.openUntil.Format(time.RFC3339))
	}
	return nil
}

func (s *Service) tripCircuit() {
	if s.circuitOpen <= 0 {
		return
	}
	s.mu.Lock()
	s.openUntil = time.Now().Add(s.circuitOpen)
	s.mu.Unlock()
}

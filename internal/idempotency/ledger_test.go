package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"transitly/internal/shared/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupLedger(t *testing.T, startedTTL time.Duration) (*Ledger, Repository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&AuditEvent{}))

	repo := NewRepository(db)
	return NewLedger(repo, startedTTL), repo
}

func TestHandlerRunsOnceAndReplayReturnsStoredResponse(t *testing.T) {
	ledger, _ := setupLedger(t, time.Minute)
	ctx := context.Background()

	calls := 0
	handler := func(ctx context.Context) (interface{}, error) {
		calls++
		return map[string]interface{}{"booking_id": 42}, nil
	}

	first, err := ledger.WithIdempotency(ctx, SourcePayment, "payment_webhook", "gw-1", map[string]string{"a": "1"}, nil, handler)
	require.NoError(t, err)

	second, err := ledger.WithIdempotency(ctx, SourcePayment, "payment_webhook", "gw-1", map[string]string{"a": "1"}, nil, handler)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.JSONEq(t, string(first), string(second))
}

func TestReplayWinsEvenWithDriftedRequest(t *testing.T) {
	ledger, _ := setupLedger(t, time.Minute)
	ctx := context.Background()

	calls := 0
	handler := func(ctx context.Context) (interface{}, error) {
		calls++
		return "done", nil
	}

	first, err := ledger.WithIdempotency(ctx, SourceOperator, "route_create", "key-1", map[string]string{"v": "1"}, nil, handler)
	require.NoError(t, err)

	// Different request body, same key: stored response still wins.
	second, err := ledger.WithIdempotency(ctx, SourceOperator, "route_create", "key-1", map[string]string{"v": "2"}, nil, handler)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, string(first), string(second))
}

func TestInFlightDuplicateRejectedWithRetrySignal(t *testing.T) {
	ledger, repo := setupLedger(t, time.Minute)
	ctx := context.Background()

	// Simulate a worker mid-flight: a young started row.
	require.NoError(t, repo.Insert(ctx, &AuditEvent{
		Source:         SourcePayment,
		EventType:      "payment_webhook",
		IdempotencyKey: "gw-busy",
		Status:         StatusStarted,
	}))

	_, err := ledger.WithIdempotency(ctx, SourcePayment, "payment_webhook", "gw-busy", nil, nil,
		func(ctx context.Context) (interface{}, error) {
			t.Fatal("handler must not run while the key is in flight")
			return nil, nil
		})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInFlight)
	assert.Equal(t, "RETRY_LATER", apperrors.CodeOf(err))
}

func TestStaleStartedRowIsTakenOverOnce(t *testing.T) {
	ledger, repo := setupLedger(t, time.Minute)
	ctx := context.Background()

	row := &AuditEvent{
		Source:         SourcePayment,
		EventType:      "payment_webhook",
		IdempotencyKey: "gw-stale",
		Status:         StatusStarted,
	}
	require.NoError(t, repo.Insert(ctx, row))

	// Age the row past the started TTL.
	db := repo.(*repository).db
	require.NoError(t, db.Model(&AuditEvent{}).
		Where("id = ?", row.ID).
		Update("created_at", time.Now().Add(-2*time.Minute)).Error)

	calls := 0
	raw, err := ledger.WithIdempotency(ctx, SourcePayment, "payment_webhook", "gw-stale", nil, nil,
		func(ctx context.Context) (interface{}, error) {
			calls++
			return "recovered", nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	var resp string
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, "recovered", resp)

	stored, err := repo.Find(ctx, SourcePayment, "payment_webhook", "gw-stale")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
}

func TestFailedRowRetriesImmediately(t *testing.T) {
	ledger, repo := setupLedger(t, time.Minute)
	ctx := context.Background()

	calls := 0
	handler := func(ctx context.Context) (interface{}, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient failure")
		}
		return "ok", nil
	}

	_, err := ledger.WithIdempotency(ctx, SourceWhatsApp, "text", "msg-1:text", nil, nil, handler)
	require.Error(t, err)

	stored, err := repo.Find(ctx, SourceWhatsApp, "text", "msg-1:text")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorSnapshot, "transient failure")

	raw, err := ledger.WithIdempotency(ctx, SourceWhatsApp, "text", "msg-1:text", nil, nil, handler)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	var resp string
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, "ok", resp)
}

func TestDifferentKeysRunIndependently(t *testing.T) {
	ledger, repo := setupLedger(t, time.Minute)
	ctx := context.Background()

	calls := 0
	handler := func(ctx context.Context) (interface{}, error) {
		calls++
		return calls, nil
	}

	_, err := ledger.WithIdempotency(ctx, SourcePayment, "payment_webhook", "gw-a", nil, nil, handler)
	require.NoError(t, err)
	_, err = ledger.WithIdempotency(ctx, SourcePayment, "payment_webhook", "gw-b", nil, nil, handler)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	count, err := repo.CountByTypeAndKey(ctx, SourcePayment, "payment_webhook", "gw-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRecordAppendsCompletedAuditEvent(t *testing.T) {
	ledger, repo := setupLedger(t, time.Minute)
	ctx := context.Background()

	err := ledger.Record(ctx, SourceSystem, "HOLD_CREATED", "booking:1:HOLD_CREATED", "wa:+15550001111",
		map[string]interface{}{"trip_id": 9})
	require.NoError(t, err)

	stored, err := repo.Find(ctx, SourceSystem, "HOLD_CREATED", "booking:1:HOLD_CREATED")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.Equal(t, "wa:+15550001111", stored.SessionID)
	assert.Contains(t, stored.Payload, "trip_id")
	assert.NotNil(t, stored.CompletedAt)
}

func TestStableHashIsOrderInsensitive(t *testing.T) {
	h1, err := StableHash(map[string]interface{}{"a": 1, "b": "x"})
	require.NoError(t, err)
	h2, err := StableHash(map[string]interface{}{"b": "x", "a": 1})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	h3, err := StableHash(map[string]interface{}{"a": 2, "b": "x"})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

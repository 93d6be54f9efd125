package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"transitly/internal/shared/apperrors"
	"transitly/pkg/logger"
)

// Handler produces the response for a first-time event.
type Handler func(ctx context.Context) (interface{}, error)

// Ledger de-duplicates every external event end-to-end. One ledger row
// exists per (source, event_type, idempotency_key); the handler body runs
// at most once for completed rows no matter how often the caller retries.
type Ledger struct {
	repo       Repository
	startedTTL time.Duration
	log        *logger.Logger
}

// NewLedger creates a ledger with the given stale-takeover threshold.
func NewLedger(repo Repository, startedTTL time.Duration) *Ledger {
	if startedTTL <= 0 {
		startedTTL = 300 * time.Second
	}
	return &Ledger{
		repo:       repo,
		startedTTL: startedTTL,
		log:        logger.GetDefault(),
	}
}

// Options carries optional audit context recorded on the ledger row.
type Options struct {
	SessionID  string
	OperatorID *uint
}

// WithIdempotency runs handler at most once for (source, eventType, key).
//
// First call: inserts a started row, runs the handler, persists the
// serialized response and flips to completed. Replays of a completed key
// return the stored response verbatim. A started row younger than the
// started TTL rejects with a retry-later signal; older started rows (and
// failed rows) are atomically taken over and re-run exactly once.
func (l *Ledger) WithIdempotency(ctx context.Context, source, eventType, key string, request interface{}, opts *Options, handler Handler) (json.RawMessage, error) {
	requestHash, err := StableHash(request)
	if err != nil {
		return nil, err
	}

	row := &AuditEvent{
		Source:         source,
		EventType:      eventType,
		IdempotencyKey: key,
		Status:         StatusStarted,
		RequestHash:    requestHash,
	}
	if opts != nil {
		row.SessionID = opts.SessionID
		row.OperatorID = opts.OperatorID
	}

	if err := l.repo.Insert(ctx, row); err != nil {
		// Insert races are resolved by the uniqueness constraint; the
		// loser lands here and enters the existing-row branch.
		existing, findErr := l.repo.Find(ctx, source, eventType, key)
		if findErr != nil {
			return nil, apperrors.Retryablef("idempotency ledger unavailable: %w", findErr)
		}
		if existing == nil {
			return nil, apperrors.Retryablef("failed to insert ledger row: %w", err)
		}
		return l.resumeExisting(ctx, existing, requestHash, handler)
	}

	return l.execute(ctx, row, handler)
}

// resumeExisting handles a replayed key.
func (l *Ledger) resumeExisting(ctx context.Context, existing *AuditEvent, requestHash string, handler Handler) (json.RawMessage, error) {
	if existing.RequestHash != "" && existing.RequestHash != requestHash {
		// Informational only: the stored response still wins.
		l.log.InfoWithContext(ctx, "Idempotency request hash drift", map[string]interface{}{
			"source":    existing.Source,
			"event":     existing.EventType,
			"key":       existing.IdempotencyKey,
			"old_hash":  existing.RequestHash,
			"new_hash":  requestHash,
			"ledger_id": existing.ID,
		})
	}

	switch existing.Status {
	case StatusCompleted:
		return json.RawMessage(existing.ResponseSnapshot), nil

	case StatusStarted:
		if time.Since(existing.CreatedAt) < l.startedTTL {
			return nil, apperrors.ErrInFlight
		}
		fallthrough

	case StatusFailed:
		staleBefore := time.Now().Add(-l.startedTTL)
		if existing.Status == StatusFailed {
			// Failed rows may be retried immediately.
			staleBefore = time.Now()
		}
		taken, err := l.repo.TakeOver(ctx, existing.ID, requestHash, staleBefore)
		if err != nil {
			return nil, apperrors.Retryablef("ledger takeover failed: %w", err)
		}
		if !taken {
			// Someone else took the row over, or it just completed;
			// the caller should retry and hit the stored response.
			return nil, apperrors.ErrInFlight
		}
		return l.execute(ctx, existing, handler)
	}

	return nil, fmt.Errorf("unexpected ledger status %q", existing.Status)
}

// execute runs the handler and persists its outcome on the row.
func (l *Ledger) execute(ctx context.Context, row *AuditEvent, handler Handler) (json.RawMessage, error) {
	resp, err := handler(ctx)
	if err != nil {
		if markErr := l.repo.MarkFailed(ctx, row.ID, err.Error()); markErr != nil {
			l.log.ErrorWithContext(ctx, "Failed to mark ledger row failed", markErr, map[string]interface{}{
				"ledger_id": row.ID,
			})
		}
		return nil, err
	}

	serialized, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize handler response: %w", err)
	}

	// The completed row is durable before the response is released, so
	// at-least-once callers never observe an absent record.
	if err := l.repo.MarkCompleted(ctx, row.ID, string(serialized)); err != nil {
		return nil, apperrors.Retryablef("failed to complete ledger row: %w", err)
	}

	return serialized, nil
}

// Record appends a standalone completed audit event outside any ledger
// envelope, for domain transitions that need a trace of their own.
func (l *Ledger) Record(ctx context.Context, source, eventType, key, sessionID string, payload interface{}) error {
	var serialized string
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to serialize audit payload: %w", err)
		}
		serialized = string(raw)
	}

	now := time.Now()
	return l.repo.Append(ctx, &AuditEvent{
		Source:         source,
		EventType:      eventType,
		IdempotencyKey: key,
		Status:         StatusCompleted,
		SessionID:      sessionID,
		Payload:        serialized,
		CompletedAt:    &now,
	})
}

package idempotency

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Repository persists ledger rows and audit events
type Repository interface {
	Insert(ctx context.Context, event *AuditEvent) error
	Find(ctx context.Context, source, eventType, key string) (*AuditEvent, error)
	MarkCompleted(ctx context.Context, id uint, response string) error
	MarkFailed(ctx context.Context, id uint, errSnapshot string) error

	// TakeOver atomically resets a non-completed row back to started so a
	// retry can re-run the handler exactly once. Returns false when
	// another worker got there first or the row completed meanwhile.
	TakeOver(ctx context.Context, id uint, requestHash string, staleBefore time.Time) (bool, error)

	// Append writes a standalone audit event already in terminal state.
	Append(ctx context.Context, event *AuditEvent) error

	CountByTypeAndKey(ctx context.Context, source, eventType, key string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, event *AuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) Find(ctx context.Context, source, eventType, key string) (*AuditEvent, error) {
	var event AuditEvent
	err := r.db.WithContext(ctx).
		Where("source = ? AND event_type = ? AND idempotency_key = ?", source, eventType, key).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) MarkCompleted(ctx context.Context, id uint, response string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&AuditEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            StatusCompleted,
			"response_snapshot": response,
			"error_snapshot":    "",
			"completed_at":      now,
		}).Error
}

func (r *repository) MarkFailed(ctx context.Context, id uint, errSnapshot string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&AuditEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         StatusFailed,
			"error_snapshot": errSnapshot,
			"completed_at":   now,
		}).Error
}

func (r *repository) TakeOver(ctx context.Context, id uint, requestHash string, staleBefore time.Time) (bool, error) {
	// Guarded update: only a failed row, or a started row older than the
	// stale threshold, may be taken over. The WHERE clause is what makes
	// the takeover exactly-once under concurrent retries.
	result := r.db.WithContext(ctx).
		Model(&AuditEvent{}).
		Where("id = ? AND (status = ? OR (status = ? AND created_at <= ?))",
			id, StatusFailed, StatusStarted, staleBefore).
		Updates(map[string]interface{}{
			"status":            StatusStarted,
			"request_hash":      requestHash,
			"response_snapshot": "",
			"error_snapshot":    "",
			"created_at":        time.Now(),
			"completed_at":      nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) Append(ctx context.Context, event *AuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) CountByTypeAndKey(ctx context.Context, source, eventType, key string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&AuditEvent{}).
		Where("source = ? AND event_type = ? AND idempotency_key = ?", source, eventType, key).
		Count(&count).Error
	return count, err
}

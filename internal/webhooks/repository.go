package webhooks

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repository interface {
	CreateMessageLog(ctx context.Context, log *MessageLog) error
	GetMessageLog(ctx context.Context, providerMessageID string) (*MessageLog, error)
	ListSessionMessages(ctx context.Context, sessionID string, limit int) ([]MessageLog, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateMessageLog(ctx context.Context, log *MessageLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *repository) GetMessageLog(ctx context.Context, providerMessageID string) (*MessageLog, error) {
	var log MessageLog
	err := r.db.WithContext(ctx).
		Where("provider_message_id = ?", providerMessageID).
		First(&log).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &log, nil
}

func (r *repository) ListSessionMessages(ctx context.Context, sessionID string, limit int) ([]MessageLog, error) {
	var logs []MessageLog
	q := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&logs).Error
	return logs, err
}

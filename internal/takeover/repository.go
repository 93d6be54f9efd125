package takeover

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, takeover *OperatorTakeover) error
	FindActiveBySession(ctx context.Context, sessionID string) (*OperatorTakeover, error)

	// Release flips an active takeover to released. Returns false when no
	// active takeover exists for the session.
	Release(ctx context.Context, sessionID string, releasedAt time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, takeover *OperatorTakeover) error {
	return r.db.WithContext(ctx).Create(takeover).Error
}

func (r *repository) FindActiveBySession(ctx context.Context, sessionID string) (*OperatorTakeover, error) {
	var takeover OperatorTakeover
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND status = ?", sessionID, StatusActive).
		Order("started_at DESC").
		First(&takeover).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &takeover, nil
}

func (r *repository) Release(ctx context.Context, sessionID string, releasedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&OperatorTakeover{}).
		Where("session_id = ? AND status = ?", sessionID, StatusActive).
		Updates(map[string]interface{}{
			"status":      StatusReleased,
			"released_at": releasedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

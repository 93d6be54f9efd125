package cancellation

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, cancellation *Cancellation) error
	GetByBookingID(ctx context.Context, bookingID uint) (*Cancellation, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, cancellation *Cancellation) error {
	return r.db.WithContext(ctx).Create(cancellation).Error
}

func (r *repository) GetByBookingID(ctx context.Context, bookingID uint) (*Cancellation, error) {
	var cancellation Cancellation
	err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&cancellation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cancellation, nil
}

package operators

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, operator *Operator) error
	GetByID(ctx context.Context, id uint) (*Operator, error)
	GetByPhone(ctx context.Context, phone string) (*Operator, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, operator *Operator) error {
	return r.db.WithContext(ctx).Create(operator).Error
}

func (r *repository) GetByID(ctx context.Context, id uint) (*Operator, error) {
	var operator Operator
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&operator).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &operator, nil
}

func (r *repository) GetByPhone(ctx context.Context, phone string) (*Operator, error) {
	var operator Operator
	err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&operator).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &operator, nil
}

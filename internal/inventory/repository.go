package inventory

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, override *InventoryOverride) error
	Update(ctx context.Context, override *InventoryOverride) error
	Find(ctx context.Context, routeID uint, tripDate string, seatNumber int) (*InventoryOverride, error)
	ListBlocked(ctx context.Context, routeID uint, tripDate string) ([]InventoryOverride, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, override *InventoryOverride) error {
	return r.db.WithContext(ctx).Create(override).Error
}

func (r *repository) Update(ctx context.Context, override *InventoryOverride) error {
	return r.db.WithContext(ctx).Save(override).Error
}

func (r *repository) Find(ctx context.Context, routeID uint, tripDate string, seatNumber int) (*InventoryOverride, error) {
	var override InventoryOverride
	err := r.db.WithContext(ctx).
		Where("route_id = ? AND trip_date = ? AND seat_number = ?", routeID, tripDate, seatNumber).
		First(&override).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &override, nil
}

func (r *repository) ListBlocked(ctx context.Context, routeID uint, tripDate string) ([]InventoryOverride, error) {
	var overrides []InventoryOverride
	err := r.db.WithContext(ctx).
		Where("route_id = ? AND trip_date = ? AND status = ?", routeID, tripDate, StatusBlocked).
		Order("seat_number ASC").
		Find(&overrides).Error
	return overrides, err
}

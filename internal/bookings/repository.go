package bookings

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, booking *Booking) error
	GetByID(ctx context.Context, id uint) (*Booking, error)
	GetByIDWithTrip(ctx context.Context, id uint) (*Booking, error)

	// UpdateStatusGuarded applies updates only while the row still sits in
	// one of fromStatuses. Returns false when another writer won the race.
	UpdateStatusGuarded(ctx context.Context, id uint, fromStatuses []string, updates map[string]interface{}) (bool, error)

	// FindExpiredHolds returns HOLD rows whose deadline has passed.
	FindExpiredHolds(ctx context.Context, now time.Time, limit int) ([]Booking, error)

	// FindHolds returns all rows currently in HOLD (including legacy
	// aliases), oldest first.
	FindHolds(ctx context.Context, limit int) ([]Booking, error)

	FindActiveHoldsByTrip(ctx context.Context, tripID uint, now time.Time) ([]Booking, error)
	FindConfirmedByTrip(ctx context.Context, tripID uint) ([]Booking, error)

	// FindLatestActiveHoldByOperator returns the most recent active HOLD on
	// any trip whose route belongs to operatorID, or nil.
	FindLatestActiveHoldByOperator(ctx context.Context, operatorID uint, now time.Time) (*Booking, error)

	CreateTicketAttachment(ctx context.Context, attachment *TicketAttachment) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, booking *Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *repository) GetByID(ctx context.Context, id uint) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	booking.Status = NormalizeStatus(booking.Status)
	return &booking, nil
}

func (r *repository) GetByIDWithTrip(ctx context.Context, id uint) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Preload("Trip").
		Preload("Trip.Route").
		Where("id = ?", id).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	booking.Status = NormalizeStatus(booking.Status)
	return &booking, nil
}

func (r *repository) UpdateStatusGuarded(ctx context.Context, id uint, fromStatuses []string, updates map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) FindExpiredHolds(ctx context.Context, now time.Time, limit int) ([]Booking, error) {
	var holds []Booking
	q := r.db.WithContext(ctx).
		Where("status IN ? AND hold_expires_at IS NOT NULL AND hold_expires_at <= ?", aliasesFor(StatusHold), now).
		Order("hold_expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&holds).Error
	return holds, err
}

func (r *repository) FindHolds(ctx context.Context, limit int) ([]Booking, error) {
	var holds []Booking
	q := r.db.WithContext(ctx).
		Where("status IN ?", aliasesFor(StatusHold)).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&holds).Error
	return holds, err
}

func (r *repository) FindActiveHoldsByTrip(ctx context.Context, tripID uint, now time.Time) ([]Booking, error) {
	var holds []Booking
	err := r.db.WithContext(ctx).
		Where("trip_id = ? AND status IN ? AND hold_expires_at IS NOT NULL AND hold_expires_at > ?",
			tripID, aliasesFor(StatusHold), now).
		Find(&holds).Error
	return holds, err
}

func (r *repository) FindConfirmedByTrip(ctx context.Context, tripID uint) ([]Booking, error) {
	var confirmed []Booking
	err := r.db.WithContext(ctx).
		Where("trip_id = ? AND status = ?", tripID, string(StatusConfirmed)).
		Find(&confirmed).Error
	return confirmed, err
}

func (r *repository) FindLatestActiveHoldByOperator(ctx context.Context, operatorID uint, now time.Time) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Joins("JOIN trips ON trips.id = bookings.trip_id").
		Joins("JOIN routes ON routes.id = trips.route_id").
		Where("routes.operator_id = ? AND bookings.status IN ? AND bookings.hold_expires_at IS NOT NULL AND bookings.hold_expires_at > ?",
			operatorID, aliasesFor(StatusHold), now).
		Order("bookings.created_at DESC").
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	booking.Status = NormalizeStatus(booking.Status)
	return &booking, nil
}

func (r *repository) CreateTicketAttachment(ctx context.Context, attachment *TicketAttachment) error {
	return r.db.WithContext(ctx).Create(attachment).Error
}

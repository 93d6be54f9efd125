package trips

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repository interface {
	CreateRoute(ctx context.Context, route *Route) error
	GetRouteByID(ctx context.Context, id uint) (*Route, error)
	GetRoutesByOperator(ctx context.Context, operatorID uint) ([]Route, error)
	DeleteRoute(ctx context.Context, id uint) error

	CreateTrip(ctx context.Context, trip *Trip) error
	GetTripByID(ctx context.Context, id uint) (*Trip, error)
	GetTripWithRoute(ctx context.Context, id uint) (*Trip, error)
	FindTrip(ctx context.Context, routeID uint, journeyDate, departureTime string) (*Trip, error)
	FindTripsByRouteDate(ctx context.Context, routeID uint, journeyDate string) ([]Trip, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateRoute(ctx context.Context, route *Route) error {
	return r.db.WithContext(ctx).Create(route).Error
}

func (r *repository) GetRouteByID(ctx context.Context, id uint) (*Route, error) {
	var route Route
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&route).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &route, nil
}

func (r *repository) GetRoutesByOperator(ctx context.Context, operatorID uint) ([]Route, error) {
	var routes []Route
	err := r.db.WithContext(ctx).
		Where("operator_id = ?", operatorID).
		Order("created_at DESC").
		Find(&routes).Error
	return routes, err
}

func (r *repository) DeleteRoute(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&Route{}, id).Error
}

func (r *repository) CreateTrip(ctx context.Context, trip *Trip) error {
	return r.db.WithContext(ctx).Create(trip).Error
}

func (r *repository) GetTripByID(ctx context.Context, id uint) (*Trip, error) {
	var trip Trip
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&trip).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trip, nil
}

func (r *repository) GetTripWithRoute(ctx context.Context, id uint) (*Trip, error) {
	var trip Trip
	err := r.db.WithContext(ctx).
		Preload("Route").
		Where("id = ?", id).
		First(&trip).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trip, nil
}

func (r *repository) FindTripsByRouteDate(ctx context.Context, routeID uint, journeyDate string) ([]Trip, error) {
	var result []Trip
	err := r.db.WithContext(ctx).
		Where("route_id = ? AND journey_date = ?", routeID, journeyDate).
		Order("departure_time ASC").
		Find(&result).Error
	return result, err
}

func (r *repository) FindTrip(ctx context.Context, routeID uint, journeyDate, departureTime string) (*Trip, error) {
	var trip Trip
	err := r.db.WithContext(ctx).
		Where("route_id = ? AND journey_date = ? AND departure_time = ?", routeID, journeyDate, departureTime).
		First(&trip).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trip, nil
}

package trips

import (
	"context"
	"fmt"

	"transitly/internal/shared/apperrors"
)

// Service interface defines the contract for route/trip management
type Service interface {
	CreateRoute(ctx context.Context, route *Route) error
	GetRoute(ctx context.Context, id uint) (*Route, error)
	GetOperatorRoutes(ctx context.Context, operatorID uint) ([]Route, error)

	CreateTrip(ctx context.Context, trip *Trip) error
	GetTrip(ctx context.Context, id uint) (*Trip, error)
	GetTripWithRoute(ctx context.Context, id uint) (*Trip, error)

	// ValidateTrip confirms the trip exists and matches the requested
	// date and departure. Intake handlers call it before any hold work.
	ValidateTrip(ctx context.Context, tripID uint, journeyDate, departureTime string) (*Trip, error)

	// OwnsTrip reports whether operatorID owns the route behind tripID.
	OwnsTrip(ctx context.Context, operatorID, tripID uint) (bool, error)
}

type service struct {
	repo Repository
}

// NewService creates a new trip service instance
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateRoute(ctx context.Context, route *Route) error {
	if route.Source == "" || route.Destination == "" {
		return fmt.Errorf("route requires source and destination")
	}
	return s.repo.CreateRoute(ctx, route)
}

func (s *service) GetRoute(ctx context.Context, id uint) (*Route, error) {
	return s.repo.GetRouteByID(ctx, id)
}

func (s *service) GetOperatorRoutes(ctx context.Context, operatorID uint) ([]Route, error) {
	return s.repo.GetRoutesByOperator(ctx, operatorID)
}

func (s *service) CreateTrip(ctx context.Context, trip *Trip) error {
	if trip.SeatQuota < 0 {
		return fmt.Errorf("seat quota must be non-negative")
	}
	route, err := s.repo.GetRouteByID(ctx, trip.RouteID)
	if err != nil {
		return fmt.Errorf("failed to look up route: %w", err)
	}
	if route == nil {
		return fmt.Errorf("route %d not found", trip.RouteID)
	}
	return s.repo.CreateTrip(ctx, trip)
}

func (s *service) GetTrip(ctx context.Context, id uint) (*Trip, error) {
	return s.repo.GetTripByID(ctx, id)
}

func (s *service) GetTripWithRoute(ctx context.Context, id uint) (*Trip, error) {
	return s.repo.GetTripWithRoute(ctx, id)
}

func (s *service) ValidateTrip(ctx context.Context, tripID uint, journeyDate, departureTime string) (*Trip, error) {
	trip, err := s.repo.GetTripWithRoute(ctx, tripID)
	if err != nil {
		return nil, apperrors.Retryablef("failed to load trip: %w", err)
	}
	if trip == nil {
		return nil, apperrors.ErrTripNotFound
	}
	if journeyDate != "" && trip.JourneyDate != journeyDate {
		return nil, fmt.Errorf("%w: journey date mismatch", apperrors.ErrTripNotFound)
	}
	if departureTime != "" && trip.DepartureTime != departureTime {
		return nil, fmt.Errorf("%w: departure time mismatch", apperrors.ErrTripNotFound)
	}
	return trip, nil
}

func (s *service) OwnsTrip(ctx context.Context, operatorID, tripID uint) (bool, error) {
	trip, err := s.repo.GetTripWithRoute(ctx, tripID)
	if err != nil {
		return false, err
	}
	if trip == nil || trip.Route == nil {
		return false, nil
	}
	return trip.Route.OperatorID == operatorID, nil
}

package inventory

import (
	"context"
	"fmt"
	"time"

	"transitly/internal/bookings"
	"transitly/internal/seatlock"
	"transitly/internal/shared/apperrors"
	"transitly/internal/trips"
	"transitly/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// BookingReader is the slice of the booking repository this service needs
// for availability math. Satisfied by bookings.Repository.
type BookingReader interface {
	FindActiveHoldsByTrip(ctx context.Context, tripID uint, now time.Time) ([]bookings.Booking, error)
	FindConfirmedByTrip(ctx context.Context, tripID uint) ([]bookings.Booking, error)
}

// Service interface defines seat allocation and override management.
type Service interface {
	// Allocate picks seatCount free seats for the trip and takes their
	// locks for sessionID. Either all requested seats are locked or none
	// remain locked on return.
	Allocate(ctx context.Context, trip *trips.Trip, seatCount int, sessionID string, ttl time.Duration) ([]int, []string, bool, error)

	// Availability computes the bookable seat count for a trip.
	Availability(ctx context.Context, trip *trips.Trip) (*AvailabilityResult, error)

	Block(ctx context.Context, req *OverrideRequest) (*InventoryOverride, error)
	Unblock(ctx context.Context, req *OverrideRequest) (*InventoryOverride, error)
	BlockedSeats(ctx context.Context, routeID uint, tripDate string) ([]int, error)
}

type service struct {
	repo     Repository
	tripRepo trips.Repository
	bookRepo BookingReader
	locks    *seatlock.Service
	redis    *redis.Client
	log      *logger.Logger
}

// NewService creates a new inventory service instance
func NewService(repo Repository, tripRepo trips.Repository, bookRepo BookingReader, locks *seatlock.Service, redisClient *redis.Client) Service {
	return &service{
		repo:     repo,
		tripRepo: tripRepo,
		bookRepo: bookRepo,
		locks:    locks,
		redis:    redisClient,
		log:      logger.GetDefault(),
	}
}

// Allocate walks candidate seats in ascending order and locks them one by
// one. A seat locked by anyone is skipped, not fought over; that includes
// locks this session already holds, which belong to an earlier hold and
// would otherwise let two holds share a seat. If the trip runs out of
// candidates before seatCount locks are held, every lock taken so far is
// released and allocation reports failure.
func (s *service) Allocate(ctx context.Context, trip *trips.Trip, seatCount int, sessionID string, ttl time.Duration) ([]int, []string, bool, error) {
	if seatCount < 1 {
		return nil, nil, false, fmt.Errorf("seat count must be at least 1")
	}

	unavailable, err := s.unavailableSeats(ctx, trip)
	if err != nil {
		return nil, nil, false, err
	}

	var (
		seats    []int
		lockKeys []string
	)
	for seat := 1; seat <= trip.SeatQuota && len(seats) < seatCount; seat++ {
		if unavailable[seat] {
			continue
		}

		key := seatlock.TripSeatKey(trip.ID, seat)
		result, err := s.locks.Acquire(ctx, key, sessionID, ttl)
		if err != nil {
			s.releaseAll(ctx, lockKeys, sessionID)
			return nil, nil, false, err
		}
		switch result {
		case seatlock.Acquired:
			seats = append(seats, seat)
			lockKeys = append(lockKeys, key)
		case seatlock.AlreadyOwned, seatlock.LockedByOther:
			// Contended seat, move on. An ALREADY_OWNED lock is backing
			// a sibling hold from the same session, so claiming the seat
			// again would double-book it.
		}
	}

	if len(seats) < seatCount {
		s.releaseAll(ctx, lockKeys, sessionID)
		return nil, nil, false, nil
	}
	return seats, lockKeys, true, nil
}

func (s *service) Availability(ctx context.Context, trip *trips.Trip) (*AvailabilityResult, error) {
	now := time.Now()

	confirmed, err := s.bookRepo.FindConfirmedByTrip(ctx, trip.ID)
	if err != nil {
		return nil, apperrors.Retryablef("failed to load confirmed bookings: %w", err)
	}
	holds, err := s.bookRepo.FindActiveHoldsByTrip(ctx, trip.ID, now)
	if err != nil {
		return nil, apperrors.Retryablef("failed to load active holds: %w", err)
	}
	blocked, err := s.BlockedSeats(ctx, trip.RouteID, trip.JourneyDate)
	if err != nil {
		return nil, err
	}

	confirmedSeats := 0
	for _, b := range confirmed {
		confirmedSeats += len(b.SeatNumbers)
	}
	heldSeats := 0
	for _, b := range holds {
		heldSeats += len(b.SeatNumbers)
	}

	available := trip.SeatQuota - confirmedSeats - heldSeats - len(blocked)
	if available < 0 {
		available = 0
	}

	return &AvailabilityResult{
		TripID:         trip.ID,
		SeatQuota:      trip.SeatQuota,
		ConfirmedSeats: confirmedSeats,
		HeldSeats:      heldSeats,
		BlockedSeats:   blocked,
		Available:      available,
	}, nil
}

// Block marks a seat blocked for the route+date. Refused when the seat is
// already on a confirmed booking for any departure that day.
func (s *service) Block(ctx context.Context, req *OverrideRequest) (*InventoryOverride, error) {
	confirmed, err := s.seatConfirmed(ctx, req.RouteID, req.TripDate, req.SeatNumber)
	if err != nil {
		return nil, err
	}
	if confirmed {
		return nil, apperrors.ErrSeatAlreadyConfirmed
	}

	override, err := s.upsert(ctx, req, StatusBlocked)
	if err != nil {
		return nil, err
	}
	s.mirrorBlockedSet(ctx, req.RouteID, req.TripDate, req.SeatNumber, true)

	s.log.InfoWithContext(ctx, "Seat blocked", map[string]interface{}{
		"route_id":  req.RouteID,
		"trip_date": req.TripDate,
		"seat":      req.SeatNumber,
		"actor":     req.Actor,
	})
	return override, nil
}

func (s *service) Unblock(ctx context.Context, req *OverrideRequest) (*InventoryOverride, error) {
	override, err := s.upsert(ctx, req, StatusUnblocked)
	if err != nil {
		return nil, err
	}
	s.mirrorBlockedSet(ctx, req.RouteID, req.TripDate, req.SeatNumber, false)

	s.log.InfoWithContext(ctx, "Seat unblocked", map[string]interface{}{
		"route_id":  req.RouteID,
		"trip_date": req.TripDate,
		"seat":      req.SeatNumber,
		"actor":     req.Actor,
	})
	return override, nil
}

func (s *service) BlockedSeats(ctx context.Context, routeID uint, tripDate string) ([]int, error) {
	overrides, err := s.repo.ListBlocked(ctx, routeID, tripDate)
	if err != nil {
		return nil, apperrors.Retryablef("failed to load overrides: %w", err)
	}
	seats := make([]int, 0, len(overrides))
	for _, o := range overrides {
		seats = append(seats, o.SeatNumber)
	}
	return seats, nil
}

// unavailableSeats is the union of blocked and confirmed seat numbers for
// the trip. Held seats defend themselves through their locks.
func (s *service) unavailableSeats(ctx context.Context, trip *trips.Trip) (map[int]bool, error) {
	unavailable := make(map[int]bool)

	blocked, err := s.BlockedSeats(ctx, trip.RouteID, trip.JourneyDate)
	if err != nil {
		return nil, err
	}
	for _, seat := range blocked {
		unavailable[seat] = true
	}

	confirmed, err := s.bookRepo.FindConfirmedByTrip(ctx, trip.ID)
	if err != nil {
		return nil, apperrors.Retryablef("failed to load confirmed bookings: %w", err)
	}
	for _, b := range confirmed {
		for _, seat := range b.SeatNumbers {
			unavailable[seat] = true
		}
	}
	return unavailable, nil
}

func (s *service) seatConfirmed(ctx context.Context, routeID uint, tripDate string, seatNumber int) (bool, error) {
	tripList, err := s.tripRepo.FindTripsByRouteDate(ctx, routeID, tripDate)
	if err != nil {
		return false, apperrors.Retryablef("failed to load trips: %w", err)
	}
	for _, trip := range tripList {
		confirmed, err := s.bookRepo.FindConfirmedByTrip(ctx, trip.ID)
		if err != nil {
			return false, apperrors.Retryablef("failed to load confirmed bookings: %w", err)
		}
		for _, b := range confirmed {
			for _, seat := range b.SeatNumbers {
				if seat == seatNumber {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

func (s *service) upsert(ctx context.Context, req *OverrideRequest, status string) (*InventoryOverride, error) {
	existing, err := s.repo.Find(ctx, req.RouteID, req.TripDate, req.SeatNumber)
	if err != nil {
		return nil, apperrors.Retryablef("failed to load override: %w", err)
	}

	if existing != nil {
		existing.Status = status
		existing.Actor = req.Actor
		existing.Reason = req.Reason
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, apperrors.Retryablef("failed to update override: %w", err)
		}
		return existing, nil
	}

	override := &InventoryOverride{
		RouteID:    req.RouteID,
		TripDate:   req.TripDate,
		SeatNumber: req.SeatNumber,
		Status:     status,
		Actor:      req.Actor,
		Reason:     req.Reason,
	}
	if err := s.repo.Create(ctx, override); err != nil {
		return nil, apperrors.Retryablef("failed to create override: %w", err)
	}
	return override, nil
}

// mirrorBlockedSet keeps a Redis set of blocked seats per route+date for
// external readers. Best effort, the database row is authoritative.
func (s *service) mirrorBlockedSet(ctx context.Context, routeID uint, tripDate string, seatNumber int, blocked bool) {
	if s.redis == nil {
		return
	}
	key := fmt.Sprintf("blocked:route:%d:date:%s", routeID, tripDate)
	var err error
	if blocked {
		err = s.redis.SAdd(ctx, key, seatNumber).Err()
	} else {
		err = s.redis.SRem(ctx, key, seatNumber).Err()
	}
	if err != nil {
		s.log.ErrorWithContext(ctx, "Failed to mirror blocked seat set", err, map[string]interface{}{
			"key": key,
		})
	}
}

func (s *service) releaseAll(ctx context.Context, lockKeys []string, owner string) {
	for _, key := range lockKeys {
		if _, err := s.locks.Release(ctx, key, owner); err != nil {
			s.log.ErrorWithContext(ctx, "Failed to release seat lock during rollback", err, map[string]interface{}{
				"lock_key": key,
			})
		}
	}
}

package reconciliation

import (
	"context"
	"errors"
	"time"

	"transitly/internal/bookings"
	"transitly/internal/seatlock"
	"transitly/internal/shared/apperrors"
	"transitly/pkg/logger"
)

// Service interface defines the reconciliation sweeps. This is the only
// code that resolves "database says HOLD, lock store says free" skew.
type Service interface {
	// ExpireOverdueHolds expires every HOLD whose deadline has passed.
	ExpireOverdueHolds(ctx context.Context) (int, error)

	// ReconcileOrphanedHolds expires HOLDs whose lock keys are all gone
	// from the lock store (store restart, flush). A hold with at least one
	// surviving key is respected.
	ReconcileOrphanedHolds(ctx context.Context) (int, error)
}

type service struct {
	repo    bookings.Repository
	holds   bookings.Service
	locks   *seatlock.Service
	batchSz int
	log     *logger.Logger
}

// NewService creates a new reconciliation service instance
func NewService(repo bookings.Repository, holdSvc bookings.Service, locks *seatlock.Service) Service {
	return &service{
		repo:    repo,
		holds:   holdSvc,
		locks:   locks,
		batchSz: 200,
		log:     logger.GetDefault(),
	}
}

func (s *service) ExpireOverdueHolds(ctx context.Context) (int, error) {
	overdue, err := s.repo.FindExpiredHolds(ctx, time.Now(), s.batchSz)
	if err != nil {
		return 0, apperrors.Retryablef("failed to load overdue holds: %w", err)
	}

	expired := 0
	for i := range overdue {
		booking := &overdue[i]
		if err := s.holds.ExpireHold(ctx, booking, "hold_deadline"); err != nil {
			if errors.Is(err, apperrors.ErrDisallowedTransition) {
				// Lost the race to a confirm or cancel; nothing to do.
				continue
			}
			s.log.ErrorWithContext(ctx, "Failed to expire overdue hold", err, map[string]interface{}{
				"booking_id": booking.ID,
			})
			continue
		}
		expired++
	}

	if expired > 0 {
		s.log.InfoWithContext(ctx, "Expired overdue holds", map[string]interface{}{
			"count": expired,
		})
	}
	return expired, nil
}

func (s *service) ReconcileOrphanedHolds(ctx context.Context) (int, error) {
	holds, err := s.repo.FindHolds(ctx, s.batchSz)
	if err != nil {
		return 0, apperrors.Retryablef("failed to load holds: %w", err)
	}

	reconciled := 0
	for i := range holds {
		booking := &holds[i]
		if len(booking.LockKeys) == 0 {
			continue
		}

		present, err := s.locks.Exists(ctx, booking.LockKeys...)
		if err != nil {
			// Store unreachable; try again on the next sweep rather than
			// expiring holds on a guess.
			return reconciled, err
		}
		if present {
			continue
		}

		if err := s.holds.ExpireHold(ctx, booking, "locks_lost"); err != nil {
			if errors.Is(err, apperrors.ErrDisallowedTransition) {
				continue
			}
			s.log.ErrorWithContext(ctx, "Failed to expire orphaned hold", err, map[string]interface{}{
				"booking_id": booking.ID,
			})
			continue
		}
		reconciled++
	}

	if reconciled > 0 {
		s.log.InfoWithContext(ctx, "Reconciled orphaned holds", map[string]interface{}{
			"count": reconciled,
		})
	}
	return reconciled, nil
}

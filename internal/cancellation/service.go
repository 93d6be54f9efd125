package cancellation

import (
	"context"
	"fmt"

	"transitly/internal/bookings"
	"transitly/internal/idempotency"
	"transitly/internal/operators"
	"transitly/internal/seatlock"
	"transitly/internal/shared/apperrors"
	"transitly/internal/shared/config"
	"transitly/internal/trips"
	"transitly/pkg/logger"

	"github.com/google/uuid"
)

// Service interface defines the cancellation coordinator
type Service interface {
	Cancel(ctx context.Context, req *CancelRequest) (*CancelResult, error)
}

type service struct {
	repo     Repository
	bookRepo bookings.Repository
	bookSvc  bookings.Service
	locks    *seatlock.Service
	trips    trips.Service
	ledger   *idempotency.Ledger
	cfg      *config.Config
	log      *logger.Logger
}

// NewService creates a new cancellation service instance
func NewService(repo Repository, bookRepo bookings.Repository, bookSvc bookings.Service, locks *seatlock.Service, tripSvc trips.Service, ledger *idempotency.Ledger, cfg *config.Config) Service {
	return &service{
		repo:     repo,
		bookRepo: bookRepo,
		bookSvc:  bookSvc,
		locks:    locks,
		trips:    tripSvc,
		ledger:   ledger,
		cfg:      cfg,
		log:      logger.GetDefault(),
	}
}

// Cancel serializes concurrent cancels of the same booking behind a
// short-lived per-booking lock, re-reads the row inside the critical
// section and drives the CONFIRMED -> CANCELLED transition.
func (s *service) Cancel(ctx context.Context, req *CancelRequest) (*CancelResult, error) {
	lockKey := seatlock.BookingCancelKey(req.BookingID)
	lockOwner := uuid.NewString()

	acquired, err := s.locks.Acquire(ctx, lockKey, lockOwner, s.cfg.Booking.CancelLockTTL)
	if err != nil {
		return nil, err
	}
	if acquired == seatlock.LockedByOther {
		return nil, apperrors.ErrBookingLocked
	}
	defer func() {
		if _, err := s.locks.Release(context.WithoutCancel(ctx), lockKey, lockOwner); err != nil {
			s.log.ErrorWithContext(ctx, "Failed to release cancel lock", err, map[string]interface{}{
				"booking_id": req.BookingID,
			})
		}
	}()

	booking, err := s.bookRepo.GetByIDWithTrip(ctx, req.BookingID)
	if err != nil {
		return nil, apperrors.Retryablef("failed to load booking: %w", err)
	}
	if booking == nil {
		return nil, apperrors.ErrBookingNotFound
	}

	if bookings.NormalizeStatus(booking.Status) == bookings.StatusCancelled {
		existing, err := s.repo.GetByBookingID(ctx, booking.ID)
		if err != nil {
			s.log.ErrorWithContext(ctx, "Failed to load cancellation row", err, map[string]interface{}{
				"booking_id": booking.ID,
			})
		}
		booking.LockKeys = nil
		return &CancelResult{
			Booking:      booking,
			Cancellation: existing,
			Idempotent:   true,
		}, nil
	}

	if err := s.checkOwnership(ctx, booking, req); err != nil {
		return nil, err
	}

	if !booking.IsConfirmed() {
		return nil, apperrors.ErrBookingNotConfirmed
	}

	if err := s.bookSvc.CancelBooking(ctx, booking, req.Actor, req.Reason); err != nil {
		return nil, err
	}

	row := &Cancellation{
		BookingID:       booking.ID,
		CancelledBy:     req.Actor,
		OperatorID:      req.OperatorID,
		Reason:          req.Reason,
		RefundRequested: true,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		// The booking already flipped; the missing row only costs the
		// replay shortcut, which the status check covers anyway.
		s.log.ErrorWithContext(ctx, "Failed to persist cancellation row", err, map[string]interface{}{
			"booking_id": booking.ID,
		})
	}

	s.recordAudits(ctx, booking, req)

	booking.LockKeys = nil
	return &CancelResult{
		Booking:      booking,
		Cancellation: row,
	}, nil
}

// checkOwnership enforces who may cancel: admins always, customers their
// own booking, operators bookings on their own routes.
func (s *service) checkOwnership(ctx context.Context, booking *bookings.Booking, req *CancelRequest) error {
	switch req.Actor {
	case ActorAdmin:
		return nil

	case ActorCustomer:
		if req.TokenVerified {
			return nil
		}
		if operators.NormalizePhone(req.CustomerPhone) != operators.NormalizePhone(booking.CustomerPhone) {
			return apperrors.ErrOwnershipInvalid
		}
		return nil

	case ActorOperator:
		if req.OperatorID == nil {
			return apperrors.ErrOwnershipInvalid
		}
		owns, err := s.trips.OwnsTrip(ctx, *req.OperatorID, booking.TripID)
		if err != nil {
			return apperrors.Retryablef("failed to check route ownership: %w", err)
		}
		if !owns {
			return apperrors.ErrOwnershipInvalid
		}
		return nil
	}
	return fmt.Errorf("unknown cancellation actor %q", req.Actor)
}

func (s *service) recordAudits(ctx context.Context, booking *bookings.Booking, req *CancelRequest) {
	payload := map[string]interface{}{
		"actor":  req.Actor,
		"reason": req.Reason,
	}
	events := []string{"BOOKING_CANCELLED", "REFUND_REQUESTED"}
	for _, event := range events {
		key := fmt.Sprintf("booking:%d:%s", booking.ID, event)
		if err := s.ledger.Record(ctx, idempotency.SourceSystem, event, key, req.SessionID, payload); err != nil {
			s.log.ErrorWithContext(ctx, "Failed to record cancellation audit", err, map[string]interface{}{
				"booking_id": booking.ID,
				"event_type": event,
			})
		}
	}
}

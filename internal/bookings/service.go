package bookings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"transitly/internal/idempotency"
	"transitly/internal/notifications"
	"transitly/internal/seatlock"
	"transitly/internal/shared/apperrors"
	"transitly/internal/shared/config"
	"transitly/internal/trips"
	"transitly/pkg/logger"
)

// SeatAllocator assigns concrete seats for a hold. Implemented by the
// inventory service; declared here so the dependency points one way.
type SeatAllocator interface {
	Allocate(ctx context.Context, trip *trips.Trip, seatCount int, sessionID string, ttl time.Duration) (seatNumbers []int, lockKeys []string, acquired bool, err error)
}

// Service interface defines the booking coordinators. Each method is the
// single-writer body that intake handlers run inside their idempotency
// envelope.
type Service interface {
	CreateHold(ctx context.Context, req *HoldRequest) (*Booking, error)
	GetBooking(ctx context.Context, id uint) (*Booking, error)
	GetBookingWithTrip(ctx context.Context, id uint) (*Booking, error)

	// ConfirmWithTicket confirms the operator's most recent active hold
	// against the ticket they just sent.
	ConfirmWithTicket(ctx context.Context, operatorID uint, ticket *TicketInfo) (*Booking, error)

	// ApplyPayment maps a gateway event onto the referenced booking.
	ApplyPayment(ctx context.Context, req *PaymentApplyRequest) (*PaymentApplyResult, error)

	// ExpireHold moves a HOLD to EXPIRED, releasing its seats first.
	ExpireHold(ctx context.Context, booking *Booking, reason string) error

	// CancelBooking moves a CONFIRMED booking (or a still-held one) to
	// CANCELLED. Ownership checks belong to the caller.
	CancelBooking(ctx context.Context, booking *Booking, actor, reason string) error
}

type service struct {
	repo      Repository
	machine   *StateMachine
	trips     trips.Service
	allocator SeatAllocator
	locks     *seatlock.Service
	ledger    *idempotency.Ledger
	producer  notifications.Producer
	cfg       *config.Config
	log       *logger.Logger
}

// NewService creates a new booking service instance
func NewService(repo Repository, tripSvc trips.Service, allocator SeatAllocator, locks *seatlock.Service, ledger *idempotency.Ledger, producer notifications.Producer, cfg *config.Config) Service {
	return &service{
		repo:      repo,
		machine:   NewStateMachine(repo),
		trips:     tripSvc,
		allocator: allocator,
		locks:     locks,
		ledger:    ledger,
		producer:  producer,
		cfg:       cfg,
		log:       logger.GetDefault(),
	}
}

func (s *service) GetBooking(ctx context.Context, id uint) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetBookingWithTrip(ctx context.Context, id uint) (*Booking, error) {
	return s.repo.GetByIDWithTrip(ctx, id)
}

// CreateHold validates the trip, takes seat locks through the allocator
// and persists the HOLD row. Locks are taken before the row exists, so a
// failed insert rolls the locks back rather than leaking them.
func (s *service) CreateHold(ctx context.Context, req *HoldRequest) (*Booking, error) {
	trip, err := s.trips.ValidateTrip(ctx, req.TripID, req.JourneyDate, req.DepartureTime)
	if err != nil {
		return nil, err
	}

	ttl := s.cfg.Booking.HoldDuration
	seats, lockKeys, acquired, err := s.allocator.Allocate(ctx, trip, req.SeatCount, req.SessionID, ttl)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, apperrors.ErrSeatsUnavailable
	}

	expiresAt := time.Now().Add(ttl)
	booking := &Booking{
		CustomerPhone: req.CustomerPhone,
		CustomerName:  req.CustomerName,
		TripID:        trip.ID,
		SeatCount:     req.SeatCount,
		SeatNumbers:   seats,
		LockKeys:      lockKeys,
		SessionID:     req.SessionID,
		Status:        StatusHold,
		HoldExpiresAt: &expiresAt,
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		s.rollbackLocks(ctx, lockKeys, req.SessionID)
		return nil, apperrors.Retryablef("failed to persist hold: %w", err)
	}

	s.log.LogHoldCreated(ctx, booking.ID, trip.ID, seats, req.SessionID)
	s.audit(ctx, idempotency.SourceSystem, "HOLD_CREATED", booking, map[string]interface{}{
		"trip_id":      trip.ID,
		"seat_numbers": seats,
		"expires_at":   expiresAt,
	})
	s.publish(ctx, notifications.EventHoldCreated, booking)

	return booking, nil
}

// ConfirmWithTicket resolves the operator's most recent active hold and
// confirms it with the attachment metadata.
func (s *service) ConfirmWithTicket(ctx context.Context, operatorID uint, ticket *TicketInfo) (*Booking, error) {
	booking, err := s.repo.FindLatestActiveHoldByOperator(ctx, operatorID, time.Now())
	if err != nil {
		return nil, apperrors.Retryablef("failed to look up active hold: %w", err)
	}
	if booking == nil {
		return nil, apperrors.ErrBookingNotFound
	}

	receivedAt := ticket.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	attachment := &TicketAttachment{
		BookingID:       booking.ID,
		ProviderMediaID: ticket.ProviderMediaID,
		MimeType:        ticket.MimeType,
		ReceivedAt:      receivedAt,
	}
	if err := s.repo.CreateTicketAttachment(ctx, attachment); err != nil {
		return nil, apperrors.Retryablef("failed to store ticket attachment: %w", err)
	}

	err = s.machine.Transition(ctx, booking, StatusConfirmed, TransitionOptions{
		ReleaseLocks:       s.releaseHook(booking),
		TicketAttachmentID: &attachment.ID,
		TicketReceivedAt:   &receivedAt,
	})
	if err != nil {
		return nil, err
	}

	s.log.LogBookingConfirmed(ctx, booking.ID, "ticket")
	s.audit(ctx, idempotency.SourceSystem, "BOOKING_CONFIRMED", booking, map[string]interface{}{
		"ticket_attachment_id": attachment.ID,
		"operator_id":          operatorID,
	})
	s.publish(ctx, notifications.EventBookingConfirmed, booking)

	return booking, nil
}

// Terminal gateway statuses, normalized to upper case.
var (
	paymentSuccessStatuses = map[string]bool{"SUCCESS": true, "SUCCEEDED": true, "PAID": true}
	paymentFailureStatuses = map[string]bool{"FAILED": true, "FAILURE": true, "CANCELLED": true}
)

// ApplyPayment resolves the gateway outcome against the booking. A
// booking that already left HOLD reports idempotent success so gateway
// retries converge instead of erroring.
func (s *service) ApplyPayment(ctx context.Context, req *PaymentApplyRequest) (*PaymentApplyResult, error) {
	status := strings.ToUpper(req.Status)
	success := paymentSuccessStatuses[status]
	if !success && !paymentFailureStatuses[status] {
		return nil, fmt.Errorf("unrecognized payment status %q", req.Status)
	}

	booking, err := s.repo.GetByIDWithTrip(ctx, req.BookingID)
	if err != nil {
		return nil, apperrors.Retryablef("failed to load booking: %w", err)
	}
	if booking == nil {
		return nil, apperrors.ErrBookingNotFound
	}

	if !booking.IsHold() {
		return &PaymentApplyResult{
			Success:     true,
			BookingID:   booking.ID,
			FinalStatus: booking.Status,
			Idempotent:  true,
		}, nil
	}

	if success {
		err = s.machine.Transition(ctx, booking, StatusConfirmed, TransitionOptions{
			ReleaseLocks: s.releaseHook(booking),
		})
		if err != nil {
			return nil, err
		}
		s.log.LogBookingConfirmed(ctx, booking.ID, "payment")
		s.audit(ctx, idempotency.SourcePayment, "payment_success", booking, s.settlementPayload(booking, req.GatewayEventID))
		s.publish(ctx, notifications.EventBookingConfirmed, booking)
	} else {
		err = s.machine.Transition(ctx, booking, StatusExpired, TransitionOptions{
			ReleaseLocks: s.releaseHook(booking),
		})
		if err != nil {
			return nil, err
		}
		s.log.LogHoldExpired(ctx, booking.ID, "payment_failed")
		s.audit(ctx, idempotency.SourcePayment, "INVENTORY_RELEASED", booking, map[string]interface{}{
			"gateway_event_id": req.GatewayEventID,
			"gateway_status":   status,
		})
		s.publish(ctx, notifications.EventHoldExpired, booking)
	}

	return &PaymentApplyResult{
		Success:     true,
		BookingID:   booking.ID,
		FinalStatus: booking.Status,
	}, nil
}

func (s *service) ExpireHold(ctx context.Context, booking *Booking, reason string) error {
	err := s.machine.Transition(ctx, booking, StatusExpired, TransitionOptions{
		ReleaseLocks: s.releaseHook(booking),
	})
	if err != nil {
		return err
	}

	s.log.LogHoldExpired(ctx, booking.ID, reason)
	s.audit(ctx, idempotency.SourceSystem, "INVENTORY_RELEASED", booking, map[string]interface{}{
		"reason": reason,
	})
	s.publish(ctx, notifications.EventHoldExpired, booking)
	return nil
}

func (s *service) CancelBooking(ctx context.Context, booking *Booking, actor, reason string) error {
	err := s.machine.Transition(ctx, booking, StatusCancelled, TransitionOptions{
		ReleaseLocks:       s.releaseHook(booking),
		CancelledBy:        actor,
		CancellationReason: reason,
	})
	if err != nil {
		return err
	}

	s.log.LogBookingCancelled(ctx, booking.ID, actor)
	s.publish(ctx, notifications.EventBookingCancelled, booking)
	return nil
}

// releaseHook frees the booking's seat locks. Missing locks (TTL already
// lapsed, store restarted) are a safe no-op; a lock owned by someone else
// is left alone. Only transport failures abort the transition.
func (s *service) releaseHook(booking *Booking) func(ctx context.Context) error {
	lockKeys := booking.LockKeys
	owner := booking.SessionID
	bookingID := booking.ID
	return func(ctx context.Context) error {
		for _, key := range lockKeys {
			result, err := s.locks.Release(ctx, key, owner)
			if err != nil {
				return err
			}
			switch result {
			case seatlock.ReleaseNotFound:
				s.log.InfoWithContext(ctx, "Seat lock already gone on release", map[string]interface{}{
					"booking_id": bookingID,
					"lock_key":   key,
				})
			case seatlock.ReleaseNotOwner:
				s.log.WarnWithContext(ctx, "Seat lock owned by another session on release", map[string]interface{}{
					"booking_id": bookingID,
					"lock_key":   key,
				})
			}
		}
		return nil
	}
}

// rollbackLocks is the best-effort cleanup after a failed hold insert.
func (s *service) rollbackLocks(ctx context.Context, lockKeys []string, owner string) {
	for _, key := range lockKeys {
		if _, err := s.locks.Release(ctx, key, owner); err != nil {
			s.log.ErrorWithContext(ctx, "Failed to roll back seat lock", err, map[string]interface{}{
				"lock_key": key,
			})
		}
	}
}

func (s *service) settlementPayload(booking *Booking, gatewayEventID string) map[string]interface{} {
	payload := map[string]interface{}{
		"gateway_event_id": gatewayEventID,
	}
	if booking.Trip != nil && booking.Trip.Route != nil {
		gross := booking.Trip.Route.Price * int64(booking.SeatCount)
		commission := gross * int64(s.cfg.Booking.CommissionRateBPS) / 10000
		payload["gross_amount"] = gross
		payload["commission_amount"] = commission
		payload["net_amount"] = gross - commission
	}
	return payload
}

// audit appends a standalone domain audit event; failures are logged and
// swallowed, the booking row is already durable.
func (s *service) audit(ctx context.Context, source, eventType string, booking *Booking, payload map[string]interface{}) {
	key := fmt.Sprintf("booking:%d:%s", booking.ID, eventType)
	if err := s.ledger.Record(ctx, source, eventType, key, booking.SessionID, payload); err != nil {
		s.log.ErrorWithContext(ctx, "Failed to record audit event", err, map[string]interface{}{
			"booking_id": booking.ID,
			"event_type": eventType,
		})
	}
}

func (s *service) publish(ctx context.Context, eventType string, booking *Booking) {
	event := &notifications.BookingEvent{
		EventType:     eventType,
		BookingID:     booking.ID,
		TripID:        booking.TripID,
		Status:        string(booking.Status),
		CustomerPhone: booking.CustomerPhone,
		SeatNumbers:   booking.SeatNumbers,
		SessionID:     booking.SessionID,
		OccurredAt:    time.Now(),
	}
	if err := s.producer.Publish(ctx, event); err != nil {
		s.log.ErrorWithContext(ctx, "Failed to publish booking event", err, map[string]interface{}{
			"booking_id": booking.ID,
			"event_type": eventType,
		})
	}
}

package bookings

import (
	"context"
	"time"

	"transitly/internal/shared/apperrors"
	"transitly/pkg/logger"
)

// TransitionOptions carries the side effects of a transition. The
// ReleaseLocks hook runs BEFORE the status flip whenever the booking is
// leaving HOLD, so a crash between the two leaves seats free rather than
// leaked.
type TransitionOptions struct {
	// ReleaseLocks frees the booking's seat locks. Required when the
	// current status is HOLD and the target is not HOLD.
	ReleaseLocks func(ctx context.Context) error

	// Confirm-side fields, applied only on a transition to CONFIRMED.
	TicketAttachmentID *uint
	TicketReceivedAt   *time.Time

	// Cancel-side fields, applied only on a transition to CANCELLED.
	CancelledBy        string
	CancellationReason string
}

// StateMachine applies booking status transitions with a guarded update
// so that two racing callers cannot both win the same edge.
type StateMachine struct {
	repo Repository
	log  *logger.Logger
}

// NewStateMachine creates a state machine over the booking repository.
func NewStateMachine(repo Repository) *StateMachine {
	return &StateMachine{
		repo: repo,
		log:  logger.GetDefault(),
	}
}

// Transition moves booking to target. Returns ErrDisallowedTransition when
// the edge is not in the transition relation or another writer flipped the
// row first. On success the in-memory booking is updated to match the row.
func (m *StateMachine) Transition(ctx context.Context, booking *Booking, target Status, opts TransitionOptions) error {
	current := NormalizeStatus(booking.Status)
	target = NormalizeStatus(target)

	if !CanTransition(current, target) {
		return apperrors.ErrDisallowedTransition
	}
	if current == StatusHold && target == StatusHold {
		// Duplicate hold-side event, nothing to do.
		return nil
	}

	// Leaving HOLD frees the seats first. If the release hook fails the
	// row stays HOLD and the caller retries; the reconciliation loop
	// covers the case where it never does.
	if current == StatusHold && opts.ReleaseLocks != nil {
		if err := opts.ReleaseLocks(ctx); err != nil {
			return err
		}
	}

	updates := map[string]interface{}{
		"status":     string(target),
		"updated_at": time.Now(),
	}
	if current == StatusHold {
		updates["hold_expires_at"] = nil
		updates["lock_keys"] = "[]"
	}

	switch target {
	case StatusConfirmed:
		if opts.TicketAttachmentID != nil {
			updates["ticket_attachment_id"] = *opts.TicketAttachmentID
		}
		if opts.TicketReceivedAt != nil {
			updates["ticket_received_at"] = *opts.TicketReceivedAt
		}
	case StatusCancelled:
		now := time.Now()
		updates["cancelled_at"] = now
		updates["cancelled_by"] = opts.CancelledBy
		updates["cancellation_reason"] = opts.CancellationReason
	}

	won, err := m.repo.UpdateStatusGuarded(ctx, booking.ID, aliasesFor(current), updates)
	if err != nil {
		return apperrors.Retryablef("failed to update booking %d status: %w", booking.ID, err)
	}
	if !won {
		// Another writer moved the row between our read and this update.
		m.log.WarnWithContext(ctx, "Lost booking transition race", map[string]interface{}{
			"booking_id": booking.ID,
			"from":       string(current),
			"to":         string(target),
		})
		return apperrors.ErrDisallowedTransition
	}

	booking.Status = target
	if current == StatusHold {
		booking.HoldExpiresAt = nil
		booking.LockKeys = nil
	}
	switch target {
	case StatusConfirmed:
		booking.TicketAttachmentID = opts.TicketAttachmentID
		booking.TicketReceivedAt = opts.TicketReceivedAt
	case StatusCancelled:
		now := time.Now()
		booking.CancelledAt = &now
		booking.CancelledBy = opts.CancelledBy
		booking.CancellationReason = opts.CancellationReason
	}
	return nil
}

package cancellation

import (
	"time"

	"transitly/internal/bookings"
)

// Cancellation actors
const (
	ActorCustomer = "customer"
	ActorOperator = "operator"
	ActorAdmin    = "admin"
)

// Cancellation records the outcome of a successful cancel. One row per
// booking; replays find the row and report idempotent success.
type Cancellation struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	BookingID       uint      `gorm:"uniqueIndex;not null" json:"booking_id"`
	CancelledBy     string    `gorm:"type:varchar(32);not null" json:"cancelled_by"`
	OperatorID      *uint     `json:"operator_id,omitempty"`
	Reason          string    `gorm:"type:varchar(500)" json:"reason,omitempty"`
	RefundRequested bool      `json:"refund_requested"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName sets the table name for Cancellation
func (Cancellation) TableName() string {
	return "cancellations"
}

// CancelRequest asks to cancel one booking
type CancelRequest struct {
	BookingID     uint
	Actor         string
	CustomerPhone string
	// TokenVerified is set when the caller already proved possession of
	// the per-booking token.
	TokenVerified bool
	OperatorID    *uint
	Reason        string
	SessionID     string
}

// CancelResult is the cancel response
type CancelResult struct {
	Booking      *bookings.Booking `json:"booking"`
	Cancellation *Cancellation     `json:"cancellation,omitempty"`
	Idempotent   bool              `json:"idempotent"`
}

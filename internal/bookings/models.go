package bookings

import (
	"time"

	"transitly/internal/trips"
)

// Booking is the central entity. seat_numbers is the ordered set of
// assigned seats; lock_keys is the exact set of lock identifiers held in
// the lock store while the booking is in HOLD. The booking row is the
// system of record; the lock store holds only transient ownership tokens
// and never references back.
type Booking struct {
	ID            uint     `gorm:"primaryKey" json:"id"`
	CustomerPhone string   `gorm:"type:varchar(20);index;not null" json:"customer_phone"`
	CustomerName  string   `gorm:"type:varchar(120)" json:"customer_name,omitempty"`
	TripID        uint     `gorm:"index;not null" json:"trip_id"`
	SeatCount     int      `gorm:"not null;check:seat_count >= 1" json:"seat_count"`
	SeatNumbers   []int    `gorm:"serializer:json;type:text" json:"seat_numbers"`
	LockKeys      []string `gorm:"serializer:json;type:text" json:"lock_keys,omitempty"`
	SessionID     string   `gorm:"type:varchar(64);index" json:"session_id"`
	Status        Status   `gorm:"type:varchar(20);default:'HOLD'" json:"status"`

	HoldExpiresAt      *time.Time `json:"hold_expires_at,omitempty"`
	TicketAttachmentID *uint      `json:"ticket_attachment_id,omitempty"`
	TicketReceivedAt   *time.Time `json:"ticket_received_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy        string     `gorm:"type:varchar(32)" json:"cancelled_by,omitempty"`
	CancellationReason string     `gorm:"type:varchar(500)" json:"cancellation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Trip *trips.Trip `json:"trip,omitempty" gorm:"foreignKey:TripID;constraint:OnDelete:CASCADE;"`
}

// TicketAttachment records the operator-sent ticket that confirmed a
// booking.
type TicketAttachment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	BookingID       uint      `gorm:"index;not null" json:"booking_id"`
	ProviderMediaID string    `gorm:"type:varchar(128);not null" json:"provider_media_id"`
	MimeType        string    `gorm:"type:varchar(64)" json:"mime_type"`
	ReceivedAt      time.Time `json:"received_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName sets the table name for Booking
func (Booking) TableName() string {
	return "bookings"
}

// TableName sets the table name for TicketAttachment
func (TicketAttachment) TableName() string {
	return "ticket_attachments"
}

// IsHold reports whether the booking currently holds seats.
func (b *Booking) IsHold() bool {
	return NormalizeStatus(b.Status) == StatusHold
}

// IsConfirmed reports whether the booking is confirmed.
func (b *Booking) IsConfirmed() bool {
	return NormalizeStatus(b.Status) == StatusConfirmed
}

// IsActiveHold reports whether the booking is a HOLD whose deadline has
// not passed. Lazy expiry: the reconciliation loop is the source of truth
// for crossing the deadline.
func (b *Booking) IsActiveHold(now time.Time) bool {
	return b.IsHold() && b.HoldExpiresAt != nil && b.HoldExpiresAt.After(now)
}

// HoldRequest asks a coordinator to create a hold
type HoldRequest struct {
	TripID        uint   `json:"trip_id" binding:"required"`
	JourneyDate   string `json:"journey_date,omitempty"`
	DepartureTime string `json:"departure_time,omitempty"`
	CustomerPhone string `json:"customer_phone" binding:"required"`
	CustomerName  string `json:"customer_name,omitempty"`
	SeatCount     int    `json:"seat_count" binding:"required,min=1"`
	SessionID     string `json:"session_id" binding:"required"`
}

// PaymentApplyRequest maps a gateway event onto a booking
type PaymentApplyRequest struct {
	GatewayEventID string `json:"gateway_event_id"`
	Status         string `json:"status"`
	BookingID      uint   `json:"booking_id"`
}

// PaymentApplyResult is the stored (and replayed) payment response
type PaymentApplyResult struct {
	Success     bool   `json:"success"`
	BookingID   uint   `json:"booking_id"`
	FinalStatus Status `json:"final_status"`
	Idempotent  bool   `json:"idempotent"`
}

// TicketInfo describes an operator-sent ticket attachment
type TicketInfo struct {
	ProviderMediaID string    `json:"provider_media_id"`
	MimeType        string    `json:"mime_type"`
	ReceivedAt      time.Time `json:"received_at"`
}

package notifications

import "time"

// Event types published to the booking-events topic.
const (
	EventHoldCreated      = "hold_created"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
	EventHoldExpired      = "hold_expired"
)

// BookingEvent is the message published on every booking lifecycle
// transition. Downstream consumers (notification senders, analytics) read
// the topic; this service never waits on them.
type BookingEvent struct {
	EventType     string    `json:"event_type"`
	BookingID     uint      `json:"booking_id"`
	TripID        uint      `json:"trip_id"`
	Status        string    `json:"status"`
	CustomerPhone string    `json:"customer_phone,omitempty"`
	SeatNumbers   []int     `json:"seat_numbers,omitempty"`
	SessionID     string    `json:"session_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

package seatlock

import "fmt"

// TripSeatKey identifies ownership of one seat on one trip.
func TripSeatKey(tripID uint, seatNumber int) string {
	return fmt.Sprintf("lock:trip:%d:seat:%d", tripID, seatNumber)
}

// BookingCancelKey guards the per-booking cancellation critical section.
func BookingCancelKey(bookingID uint) string {
	return fmt.Sprintf("lock:booking:%d:cancel", bookingID)
}

package apperrors

import (
	"errors"
	"fmt"
)

// DomainError is a non-retryable rejection with a stable machine code.
// Adapters map codes to HTTP statuses; the code is what external actors see.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Domain rejections. Compared with errors.Is, so wrap rather than copy.
var (
	ErrBookingNotFound      = &DomainError{Code: "BOOKING_NOT_FOUND"}
	ErrBookingNotConfirmed  = &DomainError{Code: "BOOKING_NOT_CONFIRMED"}
	ErrOwnershipInvalid     = &DomainError{Code: "BOOKING_OWNERSHIP_INVALID"}
	ErrBookingLocked        = &DomainError{Code: "BOOKING_LOCKED"}
	ErrSeatAlreadyConfirmed = &DomainError{Code: "SEAT_ALREADY_CONFIRMED"}
	ErrDisallowedTransition = &DomainError{Code: "DISALLOWED_TRANSITION"}
	ErrSeatsUnavailable     = &DomainError{Code: "SEATS_UNAVAILABLE"}
	ErrTripNotFound         = &DomainError{Code: "TRIP_NOT_FOUND"}
	ErrTakeoverActive       = &DomainError{Code: "TAKEOVER_ALREADY_ACTIVE"}
	ErrReplayDetected       = &DomainError{Code: "REPLAY_DETECTED"}
	ErrInvalidSignature     = &DomainError{Code: "INVALID_SIGNATURE"}

	// ErrInFlight means a request with the same idempotency key is
	// currently executing; the caller should retry after it settles.
	ErrInFlight = &DomainError{Code: "RETRY_LATER", Message: "duplicate request in flight"}
)

// RetryableError marks an infrastructure-transient failure. Callers may
// retry with the same idempotency key; the ledger keeps the effect
// at-most-once.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "RETRY_LATER: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable wraps err as retryable. Nil-safe.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// Retryablef formats a retryable error.
func Retryablef(format string, args ...interface{}) error {
	return &RetryableError{Err: fmt.Errorf(format, args...)}
}

// IsRetryable reports whether err (or anything it wraps) is retryable.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// CodeOf extracts the domain code from err, or "" when err carries none.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

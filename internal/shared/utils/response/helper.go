package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"transitly/internal/shared/apperrors"
)

// OK writes a 200 success envelope.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// Fail writes an error envelope with the given status and code.
func Fail(c *gin.Context, status int, code string, details string) {
	c.JSON(status, APIResponse{Success: false, Error: code, Details: details})
}

// FromError maps a service error to the wire. Domain codes get their
// specific 4xx; retryable errors become 503 RETRY_LATER; everything
// else is a 500 without internals leaking.
func FromError(c *gin.Context, err error) {
	if apperrors.IsRetryable(err) {
		Fail(c, http.StatusServiceUnavailable, "RETRY_LATER", "")
		return
	}

	code := apperrors.CodeOf(err)
	switch code {
	case "BOOKING_NOT_FOUND", "TRIP_NOT_FOUND":
		Fail(c, http.StatusNotFound, code, "")
	case "BOOKING_OWNERSHIP_INVALID":
		Fail(c, http.StatusForbidden, code, "")
	case "BOOKING_NOT_CONFIRMED", "BOOKING_LOCKED", "SEAT_ALREADY_CONFIRMED",
		"TAKEOVER_ALREADY_ACTIVE", "DISALLOWED_TRANSITION", "RETRY_LATER":
		Fail(c, http.StatusConflict, code, "")
	case "SEATS_UNAVAILABLE", "REPLAY_DETECTED":
		Fail(c, http.StatusBadRequest, code, "")
	case "INVALID_SIGNATURE":
		Fail(c, http.StatusUnauthorized, code, "")
	case "":
		Fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "")
	default:
		Fail(c, http.StatusBadRequest, code, "")
	}
}

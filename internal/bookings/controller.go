package bookings

import (
	"net/http"
	"strconv"

	"transitly/internal/shared/apperrors"
	"transitly/internal/shared/config"
	"transitly/internal/shared/signing"
	"transitly/internal/shared/utils/response"
	"transitly/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Controller handles booking read endpoints. Mutations arrive through the
// webhook and cancellation surfaces, never directly here.
type Controller struct {
	service Service
	cfg     *config.Config
	log     *logger.Logger
}

// NewController creates a new booking controller instance
func NewController(service Service, cfg *config.Config) *Controller {
	return &Controller{
		service: service,
		cfg:     cfg,
		log:     logger.GetDefault(),
	}
}

// GetBooking returns a booking by id. Callers prove access with either an
// operator bearer token (already validated upstream when present) or the
// per-booking token from the confirmation message.
func (ctrl *Controller) GetBooking(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "INVALID_BOOKING_ID", "booking id must be numeric")
		return
	}
	bookingID := uint(id)

	if !ctrl.authorized(c, bookingID) {
		response.FromError(c, apperrors.ErrOwnershipInvalid)
		return
	}

	booking, err := ctrl.service.GetBookingWithTrip(c.Request.Context(), bookingID)
	if err != nil {
		response.FromError(c, apperrors.Retryablef("failed to load booking: %w", err))
		return
	}
	if booking == nil {
		response.FromError(c, apperrors.ErrBookingNotFound)
		return
	}

	// Lock keys are internal plumbing, never exposed.
	booking.LockKeys = nil
	response.OK(c, booking)
}

func (ctrl *Controller) authorized(c *gin.Context, bookingID uint) bool {
	if _, isOperator := c.Get("operator_id"); isOperator {
		return true
	}
	token := c.Query("token")
	return signing.VerifyBookingToken(ctrl.cfg.Secrets.BookingToken, bookingID, token)
}

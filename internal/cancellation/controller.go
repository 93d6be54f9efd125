package cancellation

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"transitly/internal/idempotency"
	"transitly/internal/shared/apperrors"
	"transitly/internal/shared/config"
	"transitly/internal/shared/signing"
	"transitly/internal/shared/utils/response"
	"transitly/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Controller handles the cancellation endpoint
type Controller struct {
	service Service
	ledger  *idempotency.Ledger
	cfg     *config.Config
	log     *logger.Logger
}

// NewController creates a new cancellation controller instance
func NewController(service Service, ledger *idempotency.Ledger, cfg *config.Config) *Controller {
	return &Controller{
		service: service,
		ledger:  ledger,
		cfg:     cfg,
		log:     logger.GetDefault(),
	}
}

type cancelBody struct {
	Reason        string `json:"reason,omitempty"`
	BookingToken  string `json:"booking_token,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
}

// CancelBooking cancels a booking. The actor is resolved from the
// credentials presented: an operator/admin bearer token when there is
// one, otherwise the per-booking token from the confirmation message.
func (ctrl *Controller) CancelBooking(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "INVALID_BOOKING_ID", "booking id must be numeric")
		return
	}
	bookingID := uint(id)

	var body cancelBody
	if err := c.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
		response.Fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	req := &CancelRequest{
		BookingID: bookingID,
		Reason:    body.Reason,
		SessionID: c.GetString("request_id"),
	}

	switch role, _ := c.Get("role"); role {
	case "admin":
		req.Actor = ActorAdmin
	case "operator":
		req.Actor = ActorOperator
		if operatorID, ok := operatorIDFromContext(c); ok {
			req.OperatorID = &operatorID
		}
	default:
		token := body.BookingToken
		if token == "" {
			token = c.Query("token")
		}
		if !signing.VerifyBookingToken(ctrl.cfg.Secrets.BookingToken, bookingID, token) {
			ctrl.log.LogSignatureFailure(c.Request.Context(), "cancel", c.ClientIP())
			response.FromError(c, apperrors.ErrOwnershipInvalid)
			return
		}
		req.Actor = ActorCustomer
		req.CustomerPhone = body.CustomerPhone
		req.TokenVerified = true
	}

	source := idempotency.SourceOperator
	if req.Actor == ActorCustomer {
		source = idempotency.SourceCustomer
	}
	opts := &idempotency.Options{SessionID: req.SessionID, OperatorID: req.OperatorID}

	raw, err := ctrl.ledger.WithIdempotency(c.Request.Context(), source, "booking_cancel", c.GetString("idempotency_key"), req, opts,
		func(ctx context.Context) (interface{}, error) {
			return ctrl.service.Cancel(ctx, req)
		})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, json.RawMessage(raw))
}

func operatorIDFromContext(c *gin.Context) (uint, bool) {
	raw, exists := c.Get("operator_id")
	if !exists {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return uint(v), true
	case uint:
		return v, true
	case int:
		return uint(v), true
	}
	return 0, false
}

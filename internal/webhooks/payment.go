package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"transitly/internal/bookings"
	"transitly/internal/idempotency"
	"transitly/internal/shared/config"
	"transitly/internal/shared/signing"
	"transitly/internal/shared/utils/response"
	"transitly/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Tolerance window for the payment signature timestamp.
const paymentSignatureTolerance = 5 * time.Minute

// PaymentController ingests the payment gateway's webhook. Gateway
// retries carry a fresh timestamp and signature; a byte-identical replay
// of a captured request trips the nonce guard instead.
type PaymentController struct {
	bookings  bookings.Service
	ledger    *idempotency.Ledger
	guard     *ReplayGuard
	cfg       *config.Config
	validator *validator.Validate
	log       *logger.Logger
}

// NewPaymentController creates a new payment webhook controller instance
func NewPaymentController(bookingSvc bookings.Service, ledger *idempotency.Ledger, guard *ReplayGuard, cfg *config.Config) *PaymentController {
	return &PaymentController{
		bookings:  bookingSvc,
		ledger:    ledger,
		guard:     guard,
		cfg:       cfg,
		validator: validator.New(),
		log:       logger.GetDefault(),
	}
}

// HandlePaymentWebhook processes one gateway event
func (ctrl *PaymentController) HandlePaymentWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "INVALID_REQUEST", "unable to read body")
		return
	}

	timestamp := c.GetHeader("x-timestamp")
	sig := c.GetHeader("x-signature")
	if !signing.VerifyTimestampedSignature(ctrl.cfg.Secrets.PaymentWebhook, timestamp, body, sig, paymentSignatureTolerance) {
		ctrl.log.LogSignatureFailure(c.Request.Context(), "payment", c.ClientIP())
		response.Fail(c, http.StatusUnauthorized, "INVALID_SIGNATURE", "")
		return
	}

	nonce := timestamp + ":" + sig
	fresh, err := ctrl.guard.Consume(c.Request.Context(), "payment", nonce)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if !fresh {
		ctrl.log.LogReplayRejected(c.Request.Context(), "payment", nonce)
		response.Fail(c, http.StatusBadRequest, "REPLAY_DETECTED", "")
		return
	}

	var envelope paymentEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		response.Fail(c, http.StatusBadRequest, "INVALID_REQUEST", "malformed payload")
		return
	}
	if err := ctrl.validator.Struct(&envelope); err != nil {
		response.Fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	raw, err := ctrl.ledger.WithIdempotency(c.Request.Context(), idempotency.SourcePayment, "payment_webhook", envelope.GatewayEventID, &envelope, nil,
		func(ctx context.Context) (interface{}, error) {
			return ctrl.bookings.ApplyPayment(ctx, &bookings.PaymentApplyRequest{
				GatewayEventID: envelope.GatewayEventID,
				Status:         envelope.Status,
				BookingID:      envelope.Metadata.BookingID,
			})
		})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, json.RawMessage(raw))
}

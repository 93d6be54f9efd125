package takeover

import (
	"context"
	"encoding/json"
	"net/http"

	"transitly/internal/idempotency"
	"transitly/internal/shared/utils/response"
	"transitly/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Controller handles operator takeover endpoints
type Controller struct {
	service Service
	ledger  *idempotency.Ledger
	log     *logger.Logger
}

// NewController creates a new takeover controller instance
func NewController(service Service, ledger *idempotency.Ledger) *Controller {
	return &Controller{
		service: service,
		ledger:  ledger,
		log:     logger.GetDefault(),
	}
}

type startBody struct {
	Reason string `json:"reason,omitempty"`
}

type updateBody struct {
	Action string `json:"action" binding:"required,oneof=release resume"`
}

// StartTakeover pauses automated handling for a session
func (ctrl *Controller) StartTakeover(c *gin.Context) {
	sessionID := c.Param("id")

	operatorID, ok := operatorIDFromContext(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "operator identity missing")
		return
	}

	var body startBody
	if err := c.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
		response.Fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	raw, err := ctrl.withLedger(c, "takeover_start", sessionID, operatorID, &body,
		func(ctx context.Context) (interface{}, error) {
			return ctrl.service.Start(ctx, sessionID, operatorID, body.Reason)
		})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, raw)
}

// UpdateTakeover releases (or resumes, same action) a takeover
func (ctrl *Controller) UpdateTakeover(c *gin.Context) {
	sessionID := c.Param("id")

	operatorID, ok := operatorIDFromContext(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "operator identity missing")
		return
	}

	var body updateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	raw, err := ctrl.withLedger(c, "takeover_update", sessionID, operatorID, &body,
		func(ctx context.Context) (interface{}, error) {
			if err := ctrl.service.Release(ctx, sessionID, operatorID); err != nil {
				return nil, err
			}
			return gin.H{"session_id": sessionID, "status": StatusReleased}, nil
		})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, raw)
}

// withLedger runs the handler inside the idempotency envelope keyed by
// the caller's X-Idempotency-Key.
func (ctrl *Controller) withLedger(c *gin.Context, eventType, sessionID string, operatorID uint, request interface{}, handler idempotency.Handler) (json.RawMessage, error) {
	opts := &idempotency.Options{SessionID: sessionID, OperatorID: &operatorID}
	return ctrl.ledger.WithIdempotency(c.Request.Context(), idempotency.SourceOperator, eventType,
		c.GetString("idempotency_key"), request, opts, handler)
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

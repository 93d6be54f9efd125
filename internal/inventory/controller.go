package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"transitly/internal/idempotency"
	"transitly/internal/shared/apperrors"
	"transitly/internal/shared/utils/response"
	"transitly/internal/trips"
	"transitly/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Controller handles seat override and availability endpoints
type Controller struct {
	service Service
	trips   trips.Service
	ledger  *idempotency.Ledger
	log     *logger.Logger
}

// NewController creates a new inventory controller instance
func NewController(service Service, tripSvc trips.Service, ledger *idempotency.Ledger) *Controller {
	return &Controller{
		service: service,
		trips:   tripSvc,
		ledger:  ledger,
		log:     logger.GetDefault(),
	}
}

// BlockSeat marks a seat blocked for a route+date
func (ctrl *Controller) BlockSeat(c *gin.Context) {
	ctrl.applyOverride(c, true)
}

// UnblockSeat re-opens a previously blocked seat
func (ctrl *Controller) UnblockSeat(c *gin.Context) {
	ctrl.applyOverride(c, false)
}

func (ctrl *Controller) applyOverride(c *gin.Context, block bool) {
	var req OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	if !ctrl.ownsRoute(c, req.RouteID) {
		response.FromError(c, apperrors.ErrOwnershipInvalid)
		return
	}
	if req.Actor == "" {
		req.Actor = actorFromContext(c)
	}

	eventType := "inventory_unblock"
	if block {
		eventType = "inventory_block"
	}

	key := c.GetString("idempotency_key")
	operatorID, _ := operatorIDFromContext(c)
	opts := &idempotency.Options{}
	if operatorID != 0 {
		opts.OperatorID = &operatorID
	}

	raw, err := ctrl.ledger.WithIdempotency(c.Request.Context(), idempotency.SourceOperator, eventType, key, &req, opts,
		func(ctx context.Context) (interface{}, error) {
			if block {
				return ctrl.service.Block(ctx, &req)
			}
			return ctrl.service.Unblock(ctx, &req)
		})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, json.RawMessage(raw))
}

// GetAvailability returns the bookable seat count for a trip
func (ctrl *Controller) GetAvailability(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "INVALID_TRIP_ID", "trip id must be numeric")
		return
	}

	trip, err := ctrl.trips.GetTrip(c.Request.Context(), uint(id))
	if err != nil {
		response.FromError(c, apperrors.Retryablef("failed to load trip: %w", err))
		return
	}
	if trip == nil {
		response.FromError(c, apperrors.ErrTripNotFound)
		return
	}

	availability, err := ctrl.service.Availability(c.Request.Context(), trip)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, availability)
}

// ownsRoute allows admins everywhere and operators only on their own
// routes.
func (ctrl *Controller) ownsRoute(c *gin.Context, routeID uint) bool {
	if role, _ := c.Get("role"); role == "admin" {
		return true
	}
	operatorID, ok := operatorIDFromContext(c)
	if !ok {
		return false
	}
	route, err := ctrl.trips.GetRoute(c.Request.Context(), routeID)
	if err != nil || route == nil {
		return false
	}
	return route.OperatorID == operatorID
}

// operatorIDFromContext coerces the JWT claim, which arrives as a JSON
// number.
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

func actorFromContext(c *gin.Context) string {
	if role, _ := c.Get("role"); role == "admin" {
		return "admin"
	}
	if id, ok := operatorIDFromContext(c); ok {
		return "operator:" + strconv.FormatUint(uint64(id), 10)
	}
	return "unknown"
}

package trips

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"transitly/internal/idempotency"
	"transitly/internal/shared/apperrors"
	"transitly/internal/shared/utils/response"
	"transitly/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Controller handles operator route/trip management endpoints
type Controller struct {
	service Service
	ledger  *idempotency.Ledger
	log     *logger.Logger
}

// NewController creates a new trip controller instance
func NewController(service Service, ledger *idempotency.Ledger) *Controller {
	return &Controller{
		service: service,
		ledger:  ledger,
		log:     logger.GetDefault(),
	}
}

type createRouteBody struct {
	Source      string `json:"source" binding:"required"`
	Destination string `json:"destination" binding:"required"`
	Price       int64  `json:"price" binding:"required,min=0"`
}

type createTripBody struct {
	RouteID       uint   `json:"route_id" binding:"required"`
	JourneyDate   string `json:"journey_date" binding:"required"`
	DepartureTime string `json:"departure_time" binding:"required"`
	SeatQuota     int    `json:"seat_quota" binding:"required,min=1"`
}

// CreateRoute registers a new route for the calling operator
func (ctrl *Controller) CreateRoute(c *gin.Context) {
	var body createRouteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	operatorID, ok := operatorIDFromContext(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "operator identity missing")
		return
	}

	key := c.GetString("idempotency_key")
	raw, err := ctrl.ledger.WithIdempotency(c.Request.Context(), idempotency.SourceOperator, "route_create", key, &body,
		&idempotency.Options{OperatorID: &operatorID},
		func(ctx context.Context) (interface{}, error) {
			route := &Route{
				OperatorID:  operatorID,
				Source:      body.Source,
				Destination: body.Destination,
				Price:       body.Price,
			}
			if err := ctrl.service.CreateRoute(ctx, route); err != nil {
				return nil, err
			}
			return route, nil
		})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, json.RawMessage(raw))
}

// CreateTrip schedules a departure on one of the operator's routes
func (ctrl *Controller) CreateTrip(c *gin.Context) {
	var body createTripBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	operatorID, ok := operatorIDFromContext(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "operator identity missing")
		return
	}

	route, err := ctrl.service.GetRoute(c.Request.Context(), body.RouteID)
	if err != nil {
		response.FromError(c, apperrors.Retryablef("failed to load route: %w", err))
		return
	}
	if route == nil {
		response.Fail(c, http.StatusNotFound, "TRIP_NOT_FOUND", "route does not exist")
		return
	}
	if role, _ := c.Get("role"); role != "admin" && route.OperatorID != operatorID {
		response.FromError(c, apperrors.ErrOwnershipInvalid)
		return
	}

	key := c.GetString("idempotency_key")
	raw, err := ctrl.ledger.WithIdempotency(c.Request.Context(), idempotency.SourceOperator, "trip_create", key, &body,
		&idempotency.Options{OperatorID: &operatorID},
		func(ctx context.Context) (interface{}, error) {
			trip := &Trip{
				RouteID:       body.RouteID,
				JourneyDate:   body.JourneyDate,
				DepartureTime: body.DepartureTime,
				SeatQuota:     body.SeatQuota,
			}
			if err := ctrl.service.CreateTrip(ctx, trip); err != nil {
				return nil, err
			}
			return trip, nil
		})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, json.RawMessage(raw))
}

// ListRoutes returns the calling operator's routes
func (ctrl *Controller) ListRoutes(c *gin.Context) {
	operatorID, ok := operatorIDFromContext(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "operator identity missing")
		return
	}

	routes, err := ctrl.service.GetOperatorRoutes(c.Request.Context(), operatorID)
	if err != nil {
		response.FromError(c, apperrors.Retryablef("failed to load routes: %w", err))
		return
	}
	response.OK(c, routes)
}

// GetTrip returns a trip with its route
func (ctrl *Controller) GetTrip(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "INVALID_TRIP_ID", "trip id must be numeric")
		return
	}

	trip, err := ctrl.service.GetTripWithRoute(c.Request.Context(), uint(id))
	if err != nil {
		response.FromError(c, apperrors.Retryablef("failed to load trip: %w", err))
		return
	}
	if trip == nil {
		response.FromError(c, apperrors.ErrTripNotFound)
		return
	}
	response.OK(c, trip)
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

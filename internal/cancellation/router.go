package cancellation

import (
	"transitly/internal/shared/config"
	"transitly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes sets up the cancellation route. Auth is optional at the
// middleware layer; the controller demands either an operator token or a
// valid booking token.
func RegisterRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {
	rg.POST("/booking/:id/cancel",
		middleware.JWTOptional(cfg),
		middleware.RequireIdempotencyKey(),
		controller.CancelBooking)
}

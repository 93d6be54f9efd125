package inventory

import (
	"transitly/internal/shared/config"
	"transitly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes sets up inventory override and availability routes
func RegisterRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {
	// Public availability read.
	rg.GET("/trips/:id/availability", controller.GetAvailability)

	// Overrides require an operator/admin bearer token and an explicit
	// idempotency key.
	overrides := rg.Group("/inventory")
	overrides.Use(middleware.JWTAuthWithConfig(cfg))
	overrides.Use(middleware.RequireRoles("operator", "admin"))
	overrides.Use(middleware.RequireIdempotencyKey())
	{
		overrides.POST("/block", controller.BlockSeat)
		overrides.POST("/unblock", controller.UnblockSeat)
	}
}

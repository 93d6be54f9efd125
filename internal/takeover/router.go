package takeover

import (
	"transitly/internal/shared/config"
	"transitly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes sets up operator takeover routes
func RegisterRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {
	sessions := rg.Group("/operator/sessions")
	sessions.Use(middleware.JWTAuthWithConfig(cfg))
	sessions.Use(middleware.RequireRoles("operator", "admin"))
	sessions.Use(middleware.RequireIdempotencyKey())
	{
		sessions.POST("/:id/takeover", controller.StartTakeover)
		sessions.PATCH("/:id/takeover", controller.UpdateTakeover)
	}
}

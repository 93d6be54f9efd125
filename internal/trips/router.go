package trips

import (
	"transitly/internal/shared/config"
	"transitly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes sets up route/trip management routes
func RegisterRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {
	// Public trip read.
	rg.GET("/trips/:id", controller.GetTrip)

	operator := rg.Group("/operator")
	operator.Use(middleware.JWTAuthWithConfig(cfg))
	operator.Use(middleware.RequireRoles("operator", "admin"))
	{
		operator.GET("/routes", controller.ListRoutes)

		mutations := operator.Group("")
		mutations.Use(middleware.RequireIdempotencyKey())
		{
			mutations.POST("/routes", controller.CreateRoute)
			mutations.POST("/trips", controller.CreateTrip)
		}
	}
}

package bookings

import (
	"transitly/internal/shared/config"
	"transitly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes sets up booking read routes
func RegisterRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {
	bookings := rg.Group("/booking")
	bookings.Use(middleware.JWTOptional(cfg))
	{
		bookings.GET("/:id", controller.GetBooking)
	}
}

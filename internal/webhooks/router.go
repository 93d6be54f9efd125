package webhooks

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes sets up the webhook ingestion routes. Rate limiting is
// applied globally upstream with the webhook scope.
func RegisterRoutes(rg *gin.RouterGroup, chat *ChatController, payment *PaymentController) {
	hooks := rg.Group("/webhooks")
	{
		hooks.GET("/chat", chat.VerifyChat)
		hooks.POST("/chat", chat.HandleChatWebhook)
		hooks.POST("/payment", payment.HandlePaymentWebhook)
	}
}

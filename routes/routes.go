package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bookline/handlers"
)

// RegisterWebhookRoutes registers the chat channel webhook endpoints.
func RegisterWebhookRoutes(r *gin.Engine) {
	api := r.Group("/api/webhook")
	{
		api.GET("", handlers.VerifyWebhook)
		api.POST("", handlers.ReceiveWebhook)
	}
}

// RegisterHealthRoutes registers liveness endpoints.
func RegisterHealthRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

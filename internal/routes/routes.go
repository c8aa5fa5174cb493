package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MAnasLatif/kyc/internal/controllers"
)

// SetupRoutes registers all application routes.
func SetupRoutes(router *gin.Engine, kycController *controllers.KycController, env string) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"ok":        true,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"env":       env,
		})
	})

	kyc := router.Group("/kyc")
	{
		kyc.POST("/session", kycController.CreateSession)
		kyc.POST("/webhook", kycController.Webhook)
		kyc.GET("/status/:reference", kycController.Status)
		kyc.GET("/session/:reference", kycController.GetSession)
		kyc.GET("/user/:userId/sessions", kycController.UserSessions)
		kyc.GET("/webhook/:reference", kycController.GetWebhook)
		kyc.POST("/debug/extract", kycController.DebugExtract)
	}
}

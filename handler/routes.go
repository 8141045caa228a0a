package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the API on router.
func RegisterRoutes(router *gin.Engine, screenshots *ScreenshotHandler, payments *PaymentHandler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "Farm Payment OCR",
		})
	})

	api := router.Group("/api/v1")
	{
		shots := api.Group("/screenshots")
		{
			shots.POST("", screenshots.Upload)
			shots.GET("", screenshots.List)
			shots.GET("/:id", screenshots.Get)
			shots.POST("/:id/confirm", screenshots.Confirm)
			shots.POST("/:id/reprocess", screenshots.Reprocess)
		}

		pay := api.Group("/payments")
		{
			pay.POST("/extract", payments.ExtractFromFile)
			pay.POST("/extract-text", payments.ExtractFromText)
		}
	}
}

package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	// Health check
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/imports", handler.CreateImport)
		v1.GET("/imports/:run_id", handler.GetImportStatus)
		v1.POST("/enrollments/sync", handler.TriggerEnrollment)
	}
}

package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/msrptw/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(GzipMiddleware())

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/taxonomy", handler.GetTaxonomy)
		v1.GET("/sources", handler.GetSources)

		products := v1.Group("/products")
		{
			products.GET("", handler.ListProducts)
			products.GET("/:id/prices", handler.GetPriceHistory)
		}

		v1.GET("/export", handler.ExportPrices)
		v1.POST("/listings/preview", handler.PreviewListing)
	}

	return router
}

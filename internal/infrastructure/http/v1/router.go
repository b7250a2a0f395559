// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"backoffice/internal/domain/alerts"
	"backoffice/internal/domain/auth"
	"backoffice/internal/domain/catalogs/product"
	"backoffice/internal/domain/storage"
	"backoffice/internal/infrastructure/http/v1/handlers"
	"backoffice/internal/infrastructure/http/v1/middleware"
	"backoffice/internal/infrastructure/storage/postgres"
	"backoffice/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks)
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// AuthService for authentication endpoints
	AuthService *auth.Service

	// StorageService for batch ledger endpoints
	StorageService *storage.Service

	// ProductService for product catalog endpoints
	ProductService *product.Service

	// AlertEngine evaluates balance alert rules
	AlertEngine *alerts.Engine

	// Debug enables Gin debug mode
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	baseHandler := handlers.NewBaseHandler()

	// API v1
	api := router.Group("/api/v1")
	{
		// Auth routes
		authHandler := handlers.NewAuthHandler(baseHandler, cfg.AuthService)
		publicAuth := api.Group("/auth")
		protectedAuth := api.Group("/auth")
		protectedAuth.Use(middleware.Auth(cfg.JWTValidator))
		authHandler.RegisterRoutes(publicAuth, protectedAuth)

		// Protected endpoints
		protected := api.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		storageHandler := handlers.NewStorageHandler(baseHandler, cfg.StorageService, cfg.AlertEngine)
		storageHandler.RegisterRoutes(protected.Group("/storage"))

		productHandler := handlers.NewProductHandler(baseHandler, cfg.ProductService)
		productHandler.RegisterRoutes(protected.Group("/catalog/products"))
	}

	return router
}

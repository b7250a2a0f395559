// Package main is the entry point for the backoffice API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backoffice/internal/config"
	"backoffice/internal/domain/alerts"
	"backoffice/internal/domain/auth"
	"backoffice/internal/domain/catalogs/product"
	"backoffice/internal/domain/storage"
	v1 "backoffice/internal/infrastructure/http/v1"
	"backoffice/internal/infrastructure/storage/postgres"
	"backoffice/pkg/logger"
	"backoffice/pkg/numerator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting backoffice server")

	// --- Database connection ---
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN)
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}
	if cfg.Database.MinConns > 0 {
		poolCfg.MinConns = cfg.Database.MinConns
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Numbering ---
	numbers := numerator.New(pool)

	// --- Repositories ---
	batchRepo := postgres.NewBatchRepo(txManager)
	productRepo := postgres.NewProductRepo(txManager)

	auditTrail, err := postgres.NewAuditTrail(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit trail", "error", err)
	}

	// --- Domain services ---
	productService := product.NewService(productRepo, numbers)
	storageService := storage.NewService(batchRepo, productService, auditTrail, txManager, numbers)

	alertEngine, err := alerts.NewEngine(cfg.AlertRules())
	if err != nil {
		log.Fatalw("failed to compile alert rules", "error", err)
	}

	// --- Auth ---
	jwtConfig := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
	if cfg.Auth.AccessTokenTTL > 0 {
		jwtConfig.AccessTokenTTL = cfg.Auth.AccessTokenTTL
	}
	jwtService := auth.NewJWTService(jwtConfig)
	authService := auth.NewService(cfg.Auth.Accounts, jwtService)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:           pool,
		Logger:         log,
		JWTValidator:   jwtService,
		AuthService:    authService,
		StorageService: storageService,
		ProductService: productService,
		AlertEngine:    alertEngine,
		Debug:          cfg.App.Env == "dev",
	})

	// --- HTTP server ---
	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.HTTP.Port, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

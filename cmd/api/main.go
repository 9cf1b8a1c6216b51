package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"io.winapps.pushcast/internal/db"
	"io.winapps.pushcast/internal/dispatch"
	firebaseutil "io.winapps.pushcast/internal/firebase"
	"io.winapps.pushcast/internal/gateway"
	"io.winapps.pushcast/internal/handlers"
	"io.winapps.pushcast/internal/ledger"
	"io.winapps.pushcast/internal/middleware"
	"io.winapps.pushcast/internal/registry"
	"io.winapps.pushcast/internal/stats"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	logger := zapLogger.Sugar()

	// Initialize Firebase and the FCM messaging client
	firebaseApp, err := firebaseutil.InitFirebase()
	if err != nil {
		logger.Fatalw("Failed to initialize Firebase", "error", err)
	}
	messagingClient, err := firebaseutil.NewMessagingClient(firebaseApp)
	if err != nil {
		logger.Fatalw("Failed to initialize FCM client", "error", err)
	}

	// Initialize PostgreSQL
	postgresDB, err := db.InitPostgres()
	if err != nil {
		logger.Fatalw("Failed to initialize PostgreSQL", "error", err)
	}
	defer postgresDB.Close()

	// Initialize Redis
	redisClient, err := db.InitRedis()
	if err != nil {
		logger.Fatalw("Failed to initialize Redis", "error", err)
	}
	defer redisClient.Close()

	// Assemble the broadcast components
	tokenRegistry := registry.New(postgresDB, redisClient, logger)
	resolver := registry.NewResolver(tokenRegistry)
	deliveryLedger := ledger.New(postgresDB)
	pushGateway := gateway.NewFCMGateway(messagingClient, logger)
	engine := dispatch.NewEngine(dispatchConfigFromEnv(), pushGateway, tokenRegistry, deliveryLedger, logger)
	aggregator := stats.NewAggregator(tokenRegistry, deliveryLedger)

	// Nightly registry self-healing sweep
	sweeper := registry.NewSweeper(
		tokenRegistry,
		logger,
		time.Duration(getEnvInt("SWEEP_STALE_AFTER_DAYS", 60))*24*time.Hour,
		time.Duration(getEnvInt("SWEEP_RETAIN_INVALID_DAYS", 30))*24*time.Hour,
	)
	if err := sweeper.Start(); err != nil {
		logger.Fatalw("Failed to start registry sweeper", "error", err)
	}
	defer sweeper.Stop()

	// Initialize Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RequestLoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Initialize handlers
	broadcastHandler := handlers.NewBroadcastHandler(resolver, engine, logger)
	deviceHandler := handlers.NewDeviceHandler(tokenRegistry, logger)
	statsHandler := handlers.NewStatsHandler(aggregator, logger)

	adminKey := os.Getenv("ADMIN_API_KEY")
	if adminKey == "" {
		logger.Warnw("ADMIN_API_KEY is not set; admin routes are unprotected")
	}

	// Define routes
	v1 := router.Group("/api/v1")
	{
		notifications := v1.Group("/notifications")
		notifications.Use(middleware.AdminAuthMiddleware(adminKey))
		{
			notifications.POST("/submit", broadcastHandler.SubmitNotification)
			notifications.GET("/history", statsHandler.GetHistory)
			notifications.GET("/stats", statsHandler.GetTokenStats)
		}

		devices := v1.Group("/devices")
		{
			devices.POST("/register", deviceHandler.RegisterDevice)
			devices.POST("/report-failed", deviceHandler.ReportFailedToken)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + getEnvOrDefault("PORT", "9092"),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Infow("Server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infow("Shutting down server...")

	// Give a 5 second timeout for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalw("Server forced to shutdown", "error", err)
	}

	logger.Infow("Server exited")
}

// dispatchConfigFromEnv reads the dispatch tunables, falling back to the
// documented defaults for anything unset.
func dispatchConfigFromEnv() dispatch.Config {
	cfg := dispatch.DefaultConfig()
	cfg.BatchSize = getEnvInt("DISPATCH_BATCH_SIZE", cfg.BatchSize)
	cfg.Concurrency = getEnvInt("DISPATCH_CONCURRENCY", cfg.Concurrency)
	cfg.MaxRetries = getEnvInt("DISPATCH_MAX_RETRIES", cfg.MaxRetries)
	cfg.Timeout = time.Duration(getEnvInt("DISPATCH_TIMEOUT_SECONDS", int(cfg.Timeout/time.Second))) * time.Second
	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

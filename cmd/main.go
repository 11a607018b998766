package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog-service/internal/app"
	"catalog-service/internal/handler"
	mid "catalog-service/internal/middleware"
	"catalog-service/pkg/config"
	"catalog-service/pkg/database"
	"catalog-service/pkg/jwtutil"
	"catalog-service/pkg/logger"
	"catalog-service/pkg/metrics"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const serviceName = "catalog-service"

func main() {
	// Load configuration
	appConfig, err := config.Load(serviceName)
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       appConfig.Log.Level,
		Environment: appConfig.Server.Env,
		ServiceName: serviceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting "+serviceName, appConfig.LogConfig()...)

	// Initialize Prometheus metrics
	if appConfig.Metrics.Enabled {
		metrics.Register()
		log.Info("Prometheus metrics initialized")
	}

	// Initialize database, search and dynamic data engines
	engine, err := app.New(appConfig, log)
	if err != nil {
		log.Fatal("Failed to initialize catalog engine", zap.Error(err))
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Error("Failed to release resources", zap.Error(err))
		}
	}()
	log.Info("Catalog engine initialized")

	// Initialize JWT utility
	jwt := jwtutil.NewJWTUtil(appConfig.JWT.SigningKey)
	if appConfig.JWT.SigningKey == "" {
		log.Warn("JWT signing key not configured, all requests are anonymous")
	}

	searchHandler := handler.NewSearchHandler(engine.Router)
	availabilityHandler := handler.NewAvailabilityHandler(engine.Dynamic)
	healthHandler := handler.NewHealthHandler(serviceName, func(ctx context.Context) error {
		return database.Ping(ctx, engine.DB)
	}, engine.Router)

	// Initialize Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(logger.Middleware())
	if appConfig.Metrics.Enabled {
		e.Use(metrics.Middleware())
	}

	// Routes
	if appConfig.Metrics.Enabled {
		e.GET("/metrics", echo.WrapHandler(metrics.GetPrometheusHandler()))
	}
	e.GET("/health", healthHandler.HealthCheck)

	api := e.Group("/api", mid.OptionalAuthMiddleware(jwt))
	api.GET("/search", searchHandler.Search)
	api.GET("/autocomplete", searchHandler.Autocomplete)
	api.GET("/availability", availabilityHandler.Availability)

	// Start server
	go func() {
		port := appConfig.Server.Port
		log.Info("Starting server", zap.String("port", port))
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}

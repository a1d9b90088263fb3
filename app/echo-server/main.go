package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"furusatoReco/app/echo-server/router"
	"furusatoReco/internal/bootstrap"
	"furusatoReco/internal/middleware"
	"furusatoReco/internal/rest"
	"furusatoReco/pkg/config"
	"furusatoReco/pkg/logger"
	"furusatoReco/pkg/metrics"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	defer logger.Sync()
	logger.Info("Starting furusato-reco", "version", cfg.App.Version)

	metrics.Init()

	app, err := bootstrap.Build(context.Background(), cfg)
	if err != nil {
		logger.Fatal("Failed to initialise services", "error", err)
	}
	defer app.Close()

	logger.Info("Database connected successfully")

	// Init handler
	recoHandler := rest.NewRecommendationHandler(app.Feed, app.Profiles, cfg.Scorer.Timeout+cfg.Catalog.Timeout+10*time.Second)
	moduleHandler := rest.NewModuleAdminHandler(app.Engine)
	checks := map[string]rest.Pinger{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := app.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if app.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		}
	}
	healthHandler := rest.NewHealthHandler(checks)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// HTTP error handler
	e.HTTPErrorHandler = middleware.ErrorHandler

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Metrics())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:  cfg.Server.AllowOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID, "X-User-ID"},
		ExposeHeaders: []string{echo.HeaderXRequestID, "Retry-After"},
	}))

	// Setup routes
	router.SetOpsRoutes(e, healthHandler)
	api := e.Group("/api/v1")
	router.SetRecommendationRoutes(api, recoHandler)
	router.SetModuleAdminRoutes(api, moduleHandler)

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown server
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Server stopped")
}

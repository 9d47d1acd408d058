package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/forecal/forecal/internal/api/http"
	"github.com/forecal/forecal/internal/config"
	"github.com/forecal/forecal/internal/forecast"
	"github.com/forecal/forecal/internal/ical"
	"github.com/forecal/forecal/internal/nws"
	"github.com/forecal/forecal/internal/observability"
	"github.com/forecal/forecal/internal/safeurl"
	"github.com/forecal/forecal/internal/soloize"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	metrics := observability.NewMetrics()

	// NWS client with its own bounded HTTP client.
	nwsClient := nws.New(
		&http.Client{Timeout: cfg.HTTPTimeout},
		cfg.NWSBaseURL,
		cfg.UserAgent,
		metrics,
	)

	// Core service: forecasts, intervals, best-of-day, simplification.
	service := forecast.NewService(nwsClient, cfg.Thresholds, cfg.Timezone, cfg.ForecastTTL, nil, metrics)

	// Soloize service with SSRF gate, bounded feed fetches, and proactive
	// cache refresh.
	sol := soloize.New(
		safeurl.New(),
		&http.Client{Timeout: cfg.SoloizeFetchTimeout},
		nil,
		cfg.SoloizeTTL,
		metrics,
	)
	if err := sol.StartRefresh(); err != nil {
		log.Fatalf("failed to start soloize refresh: %v", err)
	}
	defer sol.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "forecal",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "forecal",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Service:          service,
		Soloize:          sol,
		Renderer:         ical.NewRenderer(cfg.Timezone),
		Metrics:          metrics,
		DefaultGrid:      cfg.DefaultGrid,
		DefaultAlertZone: cfg.DefaultAlertZone,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

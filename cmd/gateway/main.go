package main

import (
	"time"

	"palitra/internal/common/config"
	"palitra/internal/common/logging"
	"palitra/internal/common/middleware"
	"palitra/internal/gateway/handlers"
	"palitra/internal/gateway/proxy"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/sirupsen/logrus"
)

// ============================================================
// API Gateway
// ============================================================

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.Environment)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		AppName:      "API Gateway",
		ErrorHandler: middleware.ErrorHandler,
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger(logger))
	app.Use(middleware.CORS(cfg.AllowOrigins))

	// ============================================================
	// Health Check Routes
	// ============================================================

	readiness := handlers.NewReadiness(map[string]string{
		"editor":   cfg.EditorURL,
		"detector": cfg.DetectorURL,
	})
	app.Get("/health/live", handlers.LivenessProbe)
	app.Get("/health/ready", readiness.Probe)
	app.Get("/health/startup", handlers.StartupProbe)

	docs := handlers.NewDocs("docs/palitra.openapi.yaml")
	app.Get("/docs", docs.UI)
	app.Get("/docs/openapi.yaml", docs.Spec)

	// ============================================================
	// API Routes
	// ============================================================

	api := app.Group("/api/v1")

	api.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Palitra API v1",
			"status":  "ok",
		})
	})

	// ============================================================
	// Service Routes (Proxy)
	// ============================================================

	p := proxy.New(logger)

	// Editor Service
	api.Get("/projects", p.To(cfg.EditorURL+"/projects"))
	api.Post("/projects", p.To(cfg.EditorURL+"/projects"))
	api.All("/projects/*", p.Prefix(cfg.EditorURL+"/projects"))

	// Detector Service
	api.Post("/detect", p.To(cfg.DetectorURL+"/detect"))

	// ============================================================
	// Server Start
	// ============================================================

	addr := cfg.Addr("3000")
	logger.WithFields(logrus.Fields{
		"addr":     addr,
		"env":      cfg.Environment,
		"editor":   cfg.EditorURL,
		"detector": cfg.DetectorURL,
	}).Info("starting api gateway")

	if err := app.Listen(addr); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}

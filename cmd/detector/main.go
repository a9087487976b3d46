package main

import (
	"time"

	"palitra/internal/common/config"
	"palitra/internal/common/logging"
	"palitra/internal/common/middleware"
	"palitra/internal/detector/handlers"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/sirupsen/logrus"
)

// ============================================================
// Detector Service
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
		AppName:      "Detector Service",
		ErrorHandler: middleware.ErrorHandler,
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger(logger))

	// ============================================================
	// Health Check Routes
	// ============================================================

	app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})

	app.Get("/health/ready", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ready"})
	})

	app.Get("/health/startup", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "started"})
	})

	// ============================================================
	// Detector Routes
	// ============================================================

	app.Post("/detect", handlers.NewDetectHandler(cfg.MaskDir, logger).Detect)

	// ============================================================
	// Server Start
	// ============================================================

	addr := cfg.Addr("3001")
	logger.WithFields(logrus.Fields{"addr": addr, "masks": cfg.MaskDir}).Info("starting detector service")

	if err := app.Listen(addr); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}

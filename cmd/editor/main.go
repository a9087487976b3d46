package main

import (
	"context"
	"net/http"
	"time"

	"palitra/internal/common/config"
	"palitra/internal/common/logging"
	"palitra/internal/common/middleware"
	"palitra/internal/editor/detection"
	"palitra/internal/editor/handlers"
	"palitra/internal/editor/repository"
	"palitra/internal/editor/service"
	"palitra/internal/editor/textures"
	"palitra/internal/editor/workspace"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/sirupsen/logrus"
)

// ============================================================
// Editor Service
// ============================================================

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.Environment)

	db, err := repository.OpenSQLite(cfg.EditorDBPath)
	if err != nil {
		logger.Fatalf("open db: %v", err)
	}
	defer db.Close()

	repo := repository.New(db)
	if err := repo.Init(context.Background(), cfg.MigrationsPath); err != nil {
		logger.Fatalf("init db: %v", err)
	}

	registry := service.NewRegistry(
		repo,
		service.NewFileStorage(cfg.PhotoDir),
		detection.NewClient(cfg.DetectorURL, logger),
		logger,
		workspace.WithPadding(cfg.CanvasPadding),
		workspace.WithTextureLoader(textures.NewLoader(cfg.TextureBaseURL, cfg.TextureTimeoutDuration(), logger)),
	)
	defer registry.Close()

	editorHandler := handlers.NewEditorHandler(registry, cfg.DetectTimeoutDuration(), logger)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		AppName:      "Editor Service",
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

	app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})

	app.Get("/health/ready", func(c fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready", "error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ready"})
	})

	app.Get("/health/startup", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "started"})
	})

	// ============================================================
	// Editor Routes
	// ============================================================

	editorHandler.Register(app)

	// ============================================================
	// Server Start
	// ============================================================

	addr := cfg.Addr("3002")
	logger.WithFields(logrus.Fields{"addr": addr, "env": cfg.Environment}).Info("starting editor service")

	if err := app.Listen(addr); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}

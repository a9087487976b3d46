package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// ============================================================
// Logger Middleware
// ============================================================

// Logger writes one structured access line per request.
func Logger(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		entry := logger.WithFields(logrus.Fields{
			"method":       c.Method(),
			"path":         c.Path(),
			"status":       status,
			"latency":      time.Since(start).String(),
			"content_type": c.Get("Content-Type"),
		})
		switch {
		case status >= 500:
			entry.Error("request")
		case status >= 400:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
		return err
	}
}

package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Error Handler
// ============================================================

// ErrorHandler answers handler errors with the same {"error": ...} body the
// handlers write themselves.
func ErrorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := err.Error()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

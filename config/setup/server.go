package setup

import (
	"errors"
	"log/slog"
	"time"

	"scriptony/config"

	"github.com/gofiber/fiber/v2"
)

// NewFiberApp builds the HTTP server. Read/write timeouts stay above the
// OAuth exchange timeout so callback requests are not cut off mid-exchange.
func NewFiberApp(logger *slog.Logger) *fiber.App {
	return fiber.New(fiber.Config{
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           60 * time.Second,
		DisableStartupMessage: config.AppConfig.Env == "production",
		ErrorHandler:          errorHandler(logger),
		ReadBufferSize:        8192,
	})
}

func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
			message = fiberErr.Message
		}

		requestID, _ := c.Locals("requestID").(string)

		logger.Error("unhandled request error",
			"request_id", requestID,
			"method", c.Method(),
			"path", c.Path(),
			"status", code,
			"error", err,
		)

		return c.Status(code).JSON(fiber.Map{
			"error":      message,
			"request_id": requestID,
		})
	}
}

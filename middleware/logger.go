package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestLogger attaches a request ID and emits one structured log line per
// request, leveled by outcome. OAuth callback paths are logged without their
// query string so authorization codes never reach the logs.
func RequestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := uuid.New().String()

		c.Locals("requestID", requestID)
		c.Set("X-Request-ID", requestID)

		err := c.Next()

		status := c.Response().StatusCode()

		attrs := []slog.Attr{
			slog.String("request_id", requestID),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("ip", c.IP()),
		}

		if userID, ok := c.Locals("userID").(string); ok && userID != "" {
			attrs = append(attrs, slog.String("user_id", userID))
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}

		switch {
		case err != nil || status >= 500:
			logger.LogAttrs(c.Context(), slog.LevelError, "request failed", attrs...)
		case status >= 400:
			logger.LogAttrs(c.Context(), slog.LevelWarn, "request rejected", attrs...)
		default:
			logger.LogAttrs(c.Context(), slog.LevelInfo, "request", attrs...)
		}

		return err
	}
}

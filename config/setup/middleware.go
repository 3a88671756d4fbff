package setup

import (
	"log/slog"
	"strings"
	"time"

	"scriptony/config"
	"scriptony/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// ApplyMiddleware installs the global middleware stack.
func ApplyMiddleware(app *fiber.App, logger *slog.Logger) {
	// Sessions ride on cookies, so CORS must allow credentials and
	// therefore cannot use a wildcard origin.
	origins := config.GetEnv("CORS_ORIGINS", "http://localhost:5173")
	allowCredentials := !strings.Contains(origins, "*")

	app.Use(
		recover.New(),
		middleware.RequestLogger(logger),
		middleware.Security(),
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
			AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
			AllowCredentials: allowCredentials,
			MaxAge:           86400,
		}),
		limiter.New(limiter.Config{
			Max:        200,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": "Rate limit exceeded",
				})
			},
		}),
	)
}

package setup

import (
	"time"

	"scriptony/app"
	"scriptony/handlers"
	"scriptony/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(fiberApp *fiber.App, application *app.App) {

	// Public routes
	fiberApp.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	fiberApp.Get("/api/time", handlers.ServerTime)

	// Auth routes
	fiberApp.Post("/api/auth/login", handlers.Login(application))
	fiberApp.Get("/auth/google", handlers.GoogleLogin(application))
	fiberApp.Get("/auth/google/callback", handlers.GoogleCallback(application))
	fiberApp.Get("/auth/google/drive/callback", handlers.DriveCallback(application))
	fiberApp.Post("/api/auth/logout", handlers.Logout(application))
	fiberApp.Get("/api/auth/me", handlers.Me(application))

	// Protected API routes
	api := fiberApp.Group("/api", middleware.AuthRequired(application.SessionStore, application.AuthService), limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if userID, ok := c.Locals("userID").(string); ok {
				return "user:" + userID
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded for your account",
			})
		},
	}))

	api.Get("/worlds", handlers.GetWorlds(application))
	api.Post("/worlds", handlers.CreateWorld(application))
	api.Put("/worlds/:id", handlers.UpdateWorld(application))
	api.Delete("/worlds/:id", handlers.DeleteWorld(application))
	api.Post("/worlds/:id/duplicate", handlers.DuplicateWorld(application))
	api.Post("/worlds/:id/select", handlers.SelectWorld(application))

	api.Post("/storage/connect", handlers.ConnectStorage(application))
	api.Post("/storage/disconnect", handlers.DisconnectStorage(application))
	api.Get("/storage/status", handlers.StorageStatus(application))
	api.Post("/storage/project", handlers.SetProjectContext(application))
	api.Post("/storage/autosync", handlers.ConfigureAutoSync(application))
	api.Get("/storage/diagnostics", handlers.StorageDiagnostics(application))

	api.Put("/settings", handlers.UpdateSettings(application))
}

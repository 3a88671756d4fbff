package handlers

import (
	"context"
	"errors"
	"net/url"
	"time"

	"scriptony/app"
	"scriptony/autosync"
	"scriptony/middleware"
	"scriptony/models"
	"scriptony/oauth"
	"scriptony/services"

	"github.com/gofiber/fiber/v2"
)

// ConnectStorage starts the connection flow for a storage provider.
// When the session already holds a usable token the provider connects
// immediately; otherwise the response carries the consent URL.
func ConnectStorage(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.ConnectStorageRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}

		if err := a.Validator.Validate(&req); err != nil {
			return validationError(c, err)
		}

		userID := middleware.GetUserID(c)
		returnURL := c.Query("return", "/")

		result, err := a.StorageService.Connect(c.Context(), userID, req.Provider, c.Hostname(), returnURL)
		if err != nil {
			if errors.Is(err, services.ErrProviderUnavailable) {
				return badRequest(c, "Unsupported storage provider")
			}
			return serverErrorWithDetails(c, "Failed to connect storage provider", err)
		}

		return success(c, fiber.Map{
			"connected": result.Connected,
			"authUrl":   result.AuthURL,
			"status":    a.StorageService.Status(userID),
		})
	}
}

// DriveCallback handles the Drive OAuth redirect from Google. The code is
// exchanged exactly once; a replayed redirect lands back on the app with
// no error and no second exchange.
func DriveCallback(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if errParam := c.Query("error"); errParam != "" {
			return c.Redirect("/?error="+url.QueryEscape(errParam), fiber.StatusTemporaryRedirect)
		}

		if !oauth.HasPendingCallback(queryValues(c)) {
			return c.Redirect("/?error=missing_code", fiber.StatusTemporaryRedirect)
		}

		sess, err := a.AuthService.GetSessionInfo(c.Cookies("session_id"))
		if err != nil {
			return c.Redirect("/?error=session_expired", fiber.StatusTemporaryRedirect)
		}

		returnURL, _, err := a.StorageService.DriveCallback(c.Context(), sess.UserID, c.Query("code"), c.Query("state"), c.Hostname())
		if err != nil {
			switch {
			case errors.Is(err, oauth.ErrCodeAlreadyProcessed):
				return c.Redirect("/", fiber.StatusTemporaryRedirect)
			case errors.Is(err, oauth.ErrStateMismatch):
				return c.Redirect("/?error=invalid_state", fiber.StatusTemporaryRedirect)
			default:
				a.Logger.Error("drive callback failed", "user_id", sess.UserID, "error", err)
				return c.Redirect("/?error=storage_connect_failed", fiber.StatusTemporaryRedirect)
			}
		}

		if returnURL == "" {
			returnURL = "/"
		}
		return c.Redirect(returnURL, fiber.StatusTemporaryRedirect)
	}
}

// DisconnectStorage tears down the active provider and clears stored
// credentials
func DisconnectStorage(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := middleware.GetUserID(c)

		if err := a.StorageService.Disconnect(c.Context(), userID); err != nil {
			return serverErrorWithDetails(c, "Failed to disconnect storage provider", err)
		}

		return success(c, fiber.Map{
			"success": true,
			"status":  a.StorageService.Status(userID),
		})
	}
}

// StorageStatus returns the cached connection status for the user's
// active provider
func StorageStatus(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := middleware.GetUserID(c)

		return success(c, fiber.Map{
			"provider": a.StorageService.Provider(userID),
			"status":   a.StorageService.Status(userID),
		})
	}
}

// SetProjectContext scopes the user's storage connection to a project
func SetProjectContext(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.ProjectContextRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}

		if err := a.Validator.Validate(&req); err != nil {
			return validationError(c, err)
		}

		userID := middleware.GetUserID(c)
		a.StorageService.SetProjectContext(userID, req.ProjectID, req.ProjectName)

		return success(c, fiber.Map{
			"success": true,
			"status":  a.StorageService.Status(userID),
		})
	}
}

// ConfigureAutoSync enables or disables periodic world snapshots on the
// active provider
func ConfigureAutoSync(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.AutoSyncRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}

		if err := a.Validator.Validate(&req); err != nil {
			return validationError(c, err)
		}

		userID := middleware.GetUserID(c)

		if !req.Enabled {
			a.StorageService.DisableAutoSync(userID)
			return success(c, fiber.Map{"success": true, "enabled": false})
		}

		interval := autosync.DefaultInterval
		if req.IntervalSeconds > 0 {
			interval = time.Duration(req.IntervalSeconds) * time.Second
		}

		a.StorageService.EnableAutoSync(userID, interval,
			func(ctx context.Context) ([]byte, error) {
				return a.WorldService.ExportSnapshot(ctx, userID)
			},
			func() string {
				return "worlds/worlds.json"
			},
		)

		return success(c, fiber.Map{
			"success":  true,
			"enabled":  true,
			"interval": interval.String(),
		})
	}
}

// StorageDiagnostics reports environment classification, computed
// redirect URIs, and connection status without changing any state
func StorageDiagnostics(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := middleware.GetUserID(c)

		return success(c, fiber.Map{
			"diagnostics": a.StorageService.Diagnose(userID, c.Hostname()),
		})
	}
}

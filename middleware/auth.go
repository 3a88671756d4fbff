package middleware

import (
	"context"
	"log/slog"
	"strings"

	"scriptony/config"
	"scriptony/models"
	"scriptony/session"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"
)

// TokenRefresher refreshes a session's OAuth token when it is close to
// expiry.
type TokenRefresher interface {
	RefreshTokenIfNeeded(ctx context.Context, session *models.Session) (*oauth2.Token, error)
}

// AuthRequired authenticates requests by session cookie, falling back to a
// Google ID token in the Authorization header. The cookie path refreshes
// the session's OAuth token in passing; a failed refresh does not reject
// the request, since most operations work without a live Drive token.
func AuthRequired(sessionStore *session.Store, tokenRefresher TokenRefresher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if sessionID := c.Cookies("session_id"); sessionID != "" {
			sess, err := sessionStore.Get(sessionID)
			if err == nil && sess != nil {
				if tokenRefresher != nil {
					if _, err := tokenRefresher.RefreshTokenIfNeeded(c.Context(), sess); err != nil {
						slog.Warn("token refresh failed", "user_id", sess.UserID, "error", err)
					}
				}

				c.Locals("userID", sess.UserID)
				c.Locals("userEmail", sess.Email)
				c.Locals("session", sess)
				return c.Next()
			}
			c.ClearCookie("session_id")
		}

		return bearerAuth(c)
	}
}

func bearerAuth(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Missing or malformed authorization",
		})
	}

	payload, err := idtoken.Validate(c.Context(), token, config.AppConfig.GoogleClientID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
		})
	}

	c.Locals("userID", payload.Subject)
	c.Locals("userEmail", payload.Claims["email"])

	return c.Next()
}

func GetUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals("userID").(string)
	return userID
}

func GetUserEmail(c *fiber.Ctx) string {
	email, _ := c.Locals("userEmail").(string)
	return email
}

package handlers

import (
	"context"
	"log"
	"net/url"
	"time"

	"scriptony/app"
	"scriptony/config"
	"scriptony/models"
	"scriptony/oauth"
	"scriptony/services"

	"github.com/gofiber/fiber/v2"
)

// Login handles user authentication via Google OAuth
func Login(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}

		var loginResponse *services.LoginResponse
		var err error

		if req.Code != "" {
			// Authorization Code Flow
			redirectURI := a.Classifier.ComputeRedirectURI(oauth.KindAuth, c.Hostname())
			loginResponse, err = a.AuthService.LoginWithCode(c.Context(), req.Code, redirectURI)
		} else if req.AccessToken != "" {
			// Direct Token Flow (legacy support)
			log.Printf("[AUTH] Using direct access token flow (no refresh token)")
			loginResponse, err = a.AuthService.LoginWithToken(c.Context(), req.AccessToken, req.RefreshToken, req.ExpiresIn)
		} else {
			return badRequest(c, "Either code or access_token is required")
		}

		if err != nil {
			log.Printf("[AUTH] Login failed: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication failed",
			})
		}

		setSessionCookie(c, loginResponse.Session.ID, loginResponse.Session.ExpiresAt)

		// Reconnect the stored provider choice off the login path
		go a.StorageService.ResumePreferred(context.Background(), loginResponse.Session.UserID)

		return c.JSON(fiber.Map{
			"success": true,
			"user": fiber.Map{
				"id":       loginResponse.Session.UserID,
				"email":    loginResponse.Session.Email,
				"name":     loginResponse.Session.Name,
				"picture":  loginResponse.Session.Picture,
				"settings": loginResponse.Session.Settings,
			},
		})
	}
}

// Logout handles user logout
func Logout(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Cookies("session_id")
		if sessionID != "" {
			a.AuthService.Logout(sessionID)
		}

		c.ClearCookie("session_id")

		return c.JSON(fiber.Map{
			"success": true,
		})
	}
}

// Me returns the current user's session information
func Me(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Cookies("session_id")
		if sessionID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"authenticated": false,
			})
		}

		sess, err := a.AuthService.GetSessionInfo(sessionID)
		if err != nil {
			c.ClearCookie("session_id")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"authenticated": false,
			})
		}

		// Update last used timestamp
		sess.LastUsedAt = time.Now()
		a.SessionStore.Update(sessionID, sess)

		return c.JSON(fiber.Map{
			"authenticated": true,
			"user": fiber.Map{
				"id":       sess.UserID,
				"email":    sess.Email,
				"name":     sess.Name,
				"picture":  sess.Picture,
				"settings": sess.Settings,
			},
		})
	}
}

// UpdateSettings updates user settings
func UpdateSettings(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.UpdateSettingsRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}

		if err := a.Validator.Validate(&req); err != nil {
			return validationError(c, err)
		}

		sessionID := c.Cookies("session_id")
		sess, err := a.AuthService.GetSessionInfo(sessionID)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		settings := models.UserSettings{
			Theme:           req.Theme,
			StorageProvider: sess.Settings.StorageProvider,
			AutoSync:        req.AutoSync,
		}
		if settings.Theme == "" {
			settings.Theme = sess.Settings.Theme
		}

		if err := a.Repo.UpdateUserSettings(sess.UserID, settings); err != nil {
			return serverError(c, "Failed to update settings")
		}

		// Update session with new settings
		sess.Settings = settings
		a.SessionStore.Update(sessionID, sess)

		return c.JSON(fiber.Map{
			"success":  true,
			"settings": settings,
		})
	}
}

// GoogleLogin redirects to the Google OAuth consent screen. The state
// nonce is held server-side and consumed exactly once by the callback.
func GoogleLogin(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		returnURL := c.Query("return", "/")

		state, err := a.States.Issue(oauth.KindAuth, returnURL)
		if err != nil {
			return serverErrorWithDetails(c, "Failed to start sign-in", err)
		}

		redirectURI := a.Classifier.ComputeRedirectURI(oauth.KindAuth, c.Hostname())
		authURL := oauth.AuthCodeURL(state, redirectURI, oauth.AuthScopes)

		return c.Redirect(authURL, fiber.StatusTemporaryRedirect)
	}
}

// GoogleCallback handles the sign-in OAuth callback from Google
func GoogleCallback(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if errParam := c.Query("error"); errParam != "" {
			log.Printf("[AUTH] OAuth error from Google: %s", errParam)
			return c.Redirect("/?error="+url.QueryEscape(errParam), fiber.StatusTemporaryRedirect)
		}

		if !oauth.HasPendingCallback(queryValues(c)) {
			return c.Redirect("/?error=missing_code", fiber.StatusTemporaryRedirect)
		}

		returnURL, ok := a.States.Consume(c.Query("state"), oauth.KindAuth)
		if !ok {
			log.Printf("[AUTH] State mismatch or expired state")
			return c.Redirect("/?error=invalid_state", fiber.StatusTemporaryRedirect)
		}
		if returnURL == "" {
			returnURL = "/"
		}

		redirectURI := a.Classifier.ComputeRedirectURI(oauth.KindAuth, c.Hostname())
		loginResponse, err := a.AuthService.LoginWithCode(c.Context(), c.Query("code"), redirectURI)
		if err != nil {
			log.Printf("[AUTH] Login failed: %v", err)
			return c.Redirect("/?error=login_failed", fiber.StatusTemporaryRedirect)
		}

		setSessionCookie(c, loginResponse.Session.ID, loginResponse.Session.ExpiresAt)

		go a.StorageService.ResumePreferred(context.Background(), loginResponse.Session.UserID)

		return c.Redirect(returnURL, fiber.StatusTemporaryRedirect)
	}
}

func setSessionCookie(c *fiber.Ctx, sessionID string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     "session_id",
		Value:    sessionID,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   config.AppConfig.Env == "production",
		SameSite: "Lax",
		Path:     "/",
	})
}

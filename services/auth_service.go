package services

import (
	"context"
	"time"

	"scriptony/config"
	"scriptony/models"
	"scriptony/oauth"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// AuthService handles sign-in and session lifecycle.
type AuthService struct {
	repo      UserRepository
	sessions  SessionStore
	exchanger oauth.Exchanger
}

func NewAuthService(repo UserRepository, sessions SessionStore, exchanger oauth.Exchanger) *AuthService {
	return &AuthService{
		repo:      repo,
		sessions:  sessions,
		exchanger: exchanger,
	}
}

// LoginResponse contains the session and login metadata
type LoginResponse struct {
	Session *models.Session
	Token   *oauth2.Token
}

// LoginWithCode exchanges a sign-in authorization code, resolves the
// account, and creates a session.
func (as *AuthService) LoginWithCode(ctx context.Context, code, redirectURI string) (*LoginResponse, error) {
	token, err := as.exchanger.Exchange(ctx, code, redirectURI)
	if err != nil {
		return nil, ErrInvalidAuthCode
	}

	return as.login(ctx, token)
}

// LoginWithToken handles login via a direct access token (legacy clients).
func (as *AuthService) LoginWithToken(ctx context.Context, accessToken, refreshToken string, expiresIn int64) (*LoginResponse, error) {
	tokenExpiry := time.Now().Add(1 * time.Hour)
	if expiresIn > 0 {
		tokenExpiry = time.Now().Add(time.Duration(expiresIn) * time.Second)
	}

	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Expiry:       tokenExpiry,
	}

	return as.login(ctx, token)
}

func (as *AuthService) login(ctx context.Context, token *oauth2.Token) (*LoginResponse, error) {
	userInfo, err := oauth.FetchUserInfo(ctx, token.AccessToken, config.AppConfig.RequestTimeout)
	if err != nil {
		return nil, ErrInvalidToken
	}

	settings := as.loadSettings(userInfo.GoogleID)

	user := &models.User{
		ID:          userInfo.GoogleID,
		GoogleID:    userInfo.GoogleID,
		Email:       userInfo.Email,
		Name:        userInfo.Name,
		Picture:     userInfo.Picture,
		Settings:    settings,
		CreatedAt:   time.Now(),
		LastLoginAt: time.Now(),
	}
	if err := as.repo.UpsertUser(user); err != nil {
		return nil, err
	}

	sess, err := as.sessions.Create(
		userInfo.GoogleID,
		userInfo.Email,
		userInfo.Name,
		userInfo.Picture,
		token.AccessToken,
		token.RefreshToken,
		token.Expiry,
		settings,
	)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{Session: sess, Token: token}, nil
}

func (as *AuthService) Logout(sessionID string) error {
	return as.sessions.Delete(sessionID)
}

func (as *AuthService) GetSessionInfo(sessionID string) (*models.Session, error) {
	sess, err := as.sessions.Get(sessionID)
	if err != nil || sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// RefreshTokenIfNeeded refreshes the session's access token when it is
// within five minutes of expiry. A failed refresh is reported, not
// retried: the caller forces a full reconnection flow.
func (as *AuthService) RefreshTokenIfNeeded(ctx context.Context, session *models.Session) (*oauth2.Token, error) {
	current := &oauth2.Token{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		Expiry:       session.TokenExpiry,
	}

	if time.Until(session.TokenExpiry) > 5*time.Minute {
		return current, nil
	}

	if session.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	oauthConfig := &oauth2.Config{
		ClientID:     config.AppConfig.GoogleClientID,
		ClientSecret: config.AppConfig.GoogleClientSecret,
		Endpoint:     google.Endpoint,
	}

	ctx, cancel := context.WithTimeout(ctx, config.AppConfig.RequestTimeout)
	defer cancel()

	newToken, err := oauthConfig.TokenSource(ctx, current).Token()
	if err != nil {
		return nil, ErrTokenRefreshFailed
	}

	if err := as.sessions.UpdateUserToken(session.UserID, newToken.AccessToken, newToken.RefreshToken, newToken.Expiry); err == nil {
		session.AccessToken = newToken.AccessToken
		if newToken.RefreshToken != "" {
			session.RefreshToken = newToken.RefreshToken
		}
		session.TokenExpiry = newToken.Expiry
	}

	return newToken, nil
}

// loadSettings returns the user's stored settings, defaults for new users.
func (as *AuthService) loadSettings(userID string) models.UserSettings {
	defaults := models.UserSettings{
		Theme:           "dark",
		StorageProvider: "none",
	}

	user, err := as.repo.GetUser(userID)
	if err != nil || user == nil {
		return defaults
	}
	if user.Settings.Theme == "" {
		user.Settings.Theme = defaults.Theme
	}
	if user.Settings.StorageProvider == "" {
		user.Settings.StorageProvider = defaults.StorageProvider
	}
	return user.Settings
}

package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"scriptony/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

// Scopes requested for a Drive storage connection. File scope only: the
// provider sees its own folder tree, never the whole Drive.
var DriveScopes = []string{
	drive.DriveFileScope,
	"https://www.googleapis.com/auth/userinfo.email",
}

// AuthScopes requested for plain sign-in.
var AuthScopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// GoogleExchanger exchanges authorization codes against Google's token
// endpoint. The client secret stays server-side.
type GoogleExchanger struct {
	scopes  []string
	timeout time.Duration
}

func NewGoogleExchanger(scopes []string, timeout time.Duration) *GoogleExchanger {
	return &GoogleExchanger{scopes: scopes, timeout: timeout}
}

func (g *GoogleExchanger) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	oauthConfig := &oauth2.Config{
		ClientID:     config.AppConfig.GoogleClientID,
		ClientSecret: config.AppConfig.GoogleClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       g.scopes,
		Endpoint:     google.Endpoint,
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	// Force access_type=offline to ensure we get refresh tokens
	return oauthConfig.Exchange(ctx, code, oauth2.AccessTypeOffline)
}

// AuthCodeURL builds the consent-screen URL for a kind-specific redirect URI
func AuthCodeURL(state, redirectURI string, scopes []string) string {
	oauthConfig := &oauth2.Config{
		ClientID:     config.AppConfig.GoogleClientID,
		ClientSecret: config.AppConfig.GoogleClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}

	return oauthConfig.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
	)
}

// UserInfo is the subset of the Google userinfo response the service uses.
type UserInfo struct {
	GoogleID string
	Email    string
	Name     string
	Picture  string
}

var ErrInvalidUserInfo = errors.New("invalid user information")

// FetchUserInfo resolves the account behind an access token.
func FetchUserInfo(ctx context.Context, accessToken string, timeout time.Duration) (*UserInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://www.googleapis.com/oauth2/v3/userinfo", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrInvalidUserInfo
	}

	var data map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, ErrInvalidUserInfo
	}

	googleID, _ := data["sub"].(string)
	email, _ := data["email"].(string)
	name, _ := data["name"].(string)
	picture, _ := data["picture"].(string)

	if googleID == "" || email == "" {
		return nil, ErrInvalidUserInfo
	}

	return &UserInfo{
		GoogleID: googleID,
		Email:    email,
		Name:     name,
		Picture:  picture,
	}, nil
}

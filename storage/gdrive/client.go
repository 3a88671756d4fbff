// Package gdrive implements the storage provider contract against the
// Google Drive REST API, scoped to an application-managed root folder.
package gdrive

import (
	"context"

	"scriptony/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Client bundles the generated Drive service with the token source feeding
// it. Expired access tokens are refreshed inside the source; CurrentToken
// exposes the latest one so the session store can persist it.
type Client struct {
	service     *drive.Service
	tokenSource oauth2.TokenSource
	userID      string
}

func NewClient(ctx context.Context, token *oauth2.Token, userID string) (*Client, error) {
	tokenSource := refreshConfig().TokenSource(ctx, token)

	srv, err := drive.NewService(ctx,
		option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource)))
	if err != nil {
		return nil, err
	}

	return &Client{
		service:     srv,
		tokenSource: tokenSource,
		userID:      userID,
	}, nil
}

// refreshConfig is the OAuth config backing token refresh. Only the
// drive.file scope is requested, so the client never sees files the
// application did not create.
func refreshConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     config.AppConfig.GoogleClientID,
		ClientSecret: config.AppConfig.GoogleClientSecret,
		Scopes:       []string{drive.DriveFileScope},
		Endpoint:     google.Endpoint,
	}
}

// CurrentToken returns the live token, refreshed if the source rolled it.
func (c *Client) CurrentToken() (*oauth2.Token, error) {
	return c.tokenSource.Token()
}

func (c *Client) UserID() string {
	return c.userID
}

// Service exposes the raw Drive service to the folder and file managers.
func (c *Client) Service() *drive.Service {
	return c.service
}

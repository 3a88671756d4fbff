package app

import (
	"log/slog"

	"scriptony/database"
	"scriptony/oauth"
	"scriptony/services"
	"scriptony/session"
	"scriptony/validator"
)

// App holds all application dependencies
// This struct is the central point for dependency injection
type App struct {
	Repo           *database.Repository
	SessionStore   *session.Store
	AuthService    *services.AuthService
	WorldService   *services.WorldService
	StorageService *services.StorageService
	Classifier     *oauth.Classifier
	States         *oauth.StateStore
	Validator      *validator.Validator
	Logger         *slog.Logger
}

// New creates a new App instance with all dependencies
func New(repo *database.Repository, sessionStore *session.Store, authService *services.AuthService, worldService *services.WorldService, storageService *services.StorageService, classifier *oauth.Classifier, states *oauth.StateStore, logger *slog.Logger) *App {
	return &App{
		Repo:           repo,
		SessionStore:   sessionStore,
		AuthService:    authService,
		WorldService:   worldService,
		StorageService: storageService,
		Classifier:     classifier,
		States:         states,
		Validator:      validator.New(),
		Logger:         logger,
	}
}

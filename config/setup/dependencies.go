package setup

import (
	"log/slog"

	"scriptony/app"
	"scriptony/config"
	"scriptony/database"
	"scriptony/oauth"
	"scriptony/services"
	"scriptony/session"
	"scriptony/storage"
	"scriptony/storage/gdrive"
)

// InitDatabase initializes the SQLite database and runs migrations
func InitDatabase(dbPath string, logger *slog.Logger) (*database.DB, error) {
	db, err := database.New(dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("database initialized", "path", dbPath)
	return db, nil
}

// InitApp initializes the application with all dependencies
func InitApp(db *database.DB, logger *slog.Logger) *app.App {
	repo := database.NewRepository(db)

	sessionStore := session.NewStore()
	sessionStore.StartCleanupRoutine()
	logger.Info("session store initialized")

	classifier := oauth.NewClassifier(config.AppConfig.PreviewHostSuffix, config.AppConfig.ProductionHost)
	states := oauth.NewStateStore()

	authExchanger := oauth.NewGoogleExchanger(oauth.AuthScopes, config.AppConfig.ExchangeTimeout)
	driveExchanger := oauth.NewGoogleExchanger(oauth.DriveScopes, config.AppConfig.ExchangeTimeout)

	// Provider factories live in a registry so the manager never imports
	// a concrete provider
	registry := storage.NewRegistry()
	registry.Register(storage.TypeGoogleDrive, gdrive.New)
	logger.Info("storage registry configured", "providers", []string{string(storage.TypeGoogleDrive)})

	authService := services.NewAuthService(repo, sessionStore, authExchanger)
	worldService := services.NewWorldService(repo, logger)
	storageService := services.NewStorageService(registry, sessionStore, repo, classifier, states, driveExchanger, logger)

	application := app.New(repo, sessionStore, authService, worldService, storageService, classifier, states, logger)
	logger.Info("application initialized with dependency injection")

	return application
}

// Shutdown performs graceful shutdown of all services
func Shutdown(storageService *services.StorageService, db *database.DB, logger *slog.Logger) {
	logger.Info("shutting down services...")

	if storageService != nil {
		storageService.Close()
		logger.Info("storage managers stopped")
	}

	if db != nil {
		db.Close()
		logger.Info("database closed")
	}
}

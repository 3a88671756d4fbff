package services

import (
	"encoding/json"
	"time"

	"scriptony/models"
)

// WorldRepository defines the interface for world data access
type WorldRepository interface {
	GetWorlds(userID string) ([]models.World, error)
	GetWorld(worldID string) (*models.World, error)
	CreateWorld(world *models.World) error
	UpdateWorld(worldID, name string, categories json.RawMessage) error
	DeleteWorld(worldID string) error
	DuplicateWorld(worldID string) (*models.World, error)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetUser(userID string) (*models.User, error)
	UpsertUser(user *models.User) error
	UpdateUserSettings(userID string, settings models.UserSettings) error
	GetStorageProvider(userID string) (string, error)
	UpdateStorageProvider(userID, provider string) error
}

// SessionStore defines the interface for session management
type SessionStore interface {
	Create(userID, email, name, picture, accessToken, refreshToken string, tokenExpiry time.Time, settings models.UserSettings) (*models.Session, error)
	Get(sessionID string) (*models.Session, error)
	GetByUserID(userID string) *models.Session
	Update(sessionID string, session *models.Session) error
	UpdateUserToken(userID, accessToken, refreshToken string, tokenExpiry time.Time) error
	ClearUserToken(userID string) error
	Delete(sessionID string) error
}

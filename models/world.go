package models

import (
	"encoding/json"
	"time"
)

type UserSettings struct {
	Theme           string `json:"theme"`
	StorageProvider string `json:"storageProvider"`
	AutoSync        bool   `json:"autoSync"`
}

type User struct {
	ID          string       `json:"id"`
	GoogleID    string       `json:"google_id"`
	Email       string       `json:"email"`
	Name        string       `json:"name"`
	Picture     string       `json:"picture"`
	Settings    UserSettings `json:"settings"`
	CreatedAt   time.Time    `json:"created_at"`
	LastLoginAt time.Time    `json:"last_login_at"`
}

// World is a worldbuilding container: a named collection of category
// payloads (geography, politics, economy, society, culture) kept as
// tagged JSON so each category carries its own schema.
type World struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	ProjectID  string          `json:"project_id,omitempty"`
	Name       string          `json:"name"`
	Categories json.RawMessage `json:"categories,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type Session struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	Email        string       `json:"email"`
	Name         string       `json:"name"`
	Picture      string       `json:"picture"`
	AccessToken  string       `json:"-"`
	RefreshToken string       `json:"-"`
	TokenExpiry  time.Time    `json:"-"`
	Settings     UserSettings `json:"settings"`
	ExpiresAt    time.Time    `json:"expires_at"`
	CreatedAt    time.Time    `json:"created_at"`
	LastUsedAt   time.Time    `json:"last_used_at"`
}

type LoginRequest struct {
	Code         string `json:"code,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
}

type CreateWorldRequest struct {
	Name       string          `json:"name" validate:"required,min=1,max=120,worldname"`
	ProjectID  string          `json:"projectId,omitempty"`
	Categories json.RawMessage `json:"categories,omitempty"`
}

type UpdateWorldRequest struct {
	Name       string          `json:"name" validate:"required,min=1,max=120,worldname"`
	Categories json.RawMessage `json:"categories,omitempty"`
}

type UpdateSettingsRequest struct {
	Theme           string `json:"theme" validate:"omitempty,theme"`
	StorageProvider string `json:"storageProvider" validate:"omitempty,providertype"`
	AutoSync        bool   `json:"autoSync"`
}

type ConnectStorageRequest struct {
	Provider string `json:"provider" validate:"required,providertype"`
}

type ProjectContextRequest struct {
	ProjectID   string `json:"projectId" validate:"required"`
	ProjectName string `json:"projectName" validate:"required,min=1,max=120,worldname"`
}

type AutoSyncRequest struct {
	Enabled         bool  `json:"enabled"`
	IntervalSeconds int64 `json:"intervalSeconds" validate:"omitempty,gte=30,lte=3600"`
}

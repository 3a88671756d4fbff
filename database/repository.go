package database

import (
	"database/sql"
	"encoding/json"
	"time"

	"scriptony/models"

	"github.com/google/uuid"
)

type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// ==================== USERS ====================

func (r *Repository) GetUser(userID string) (*models.User, error) {
	var user models.User
	var settings models.UserSettings
	var autoSync int

	err := r.db.QueryRow(`
		SELECT id, google_id, email, name, picture,
			   settings_theme, settings_storage_provider, settings_auto_sync,
			   created_at, last_login_at
		FROM users WHERE id = ?
	`, userID).Scan(
		&user.ID, &user.GoogleID, &user.Email, &user.Name, &user.Picture,
		&settings.Theme, &settings.StorageProvider, &autoSync,
		&user.CreatedAt, &user.LastLoginAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	settings.AutoSync = autoSync != 0
	user.Settings = settings
	return &user, nil
}

func (r *Repository) UpsertUser(user *models.User) error {
	autoSync := 0
	if user.Settings.AutoSync {
		autoSync = 1
	}

	_, err := r.db.Exec(`
		INSERT INTO users (id, google_id, email, name, picture,
			settings_theme, settings_storage_provider, settings_auto_sync,
			created_at, last_login_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			picture = excluded.picture,
			last_login_at = excluded.last_login_at,
			updated_at = excluded.updated_at
	`,
		user.ID, user.GoogleID, user.Email, user.Name, user.Picture,
		user.Settings.Theme, user.Settings.StorageProvider, autoSync,
		user.CreatedAt, user.LastLoginAt, time.Now(),
	)
	return err
}

func (r *Repository) UpdateUserSettings(userID string, settings models.UserSettings) error {
	autoSync := 0
	if settings.AutoSync {
		autoSync = 1
	}

	_, err := r.db.Exec(`
		UPDATE users SET
			settings_theme = ?,
			settings_storage_provider = ?,
			settings_auto_sync = ?,
			updated_at = ?
		WHERE id = ?
	`,
		settings.Theme, settings.StorageProvider, autoSync,
		time.Now(), userID,
	)
	return err
}

// GetStorageProvider returns the user's persisted provider preference
func (r *Repository) GetStorageProvider(userID string) (string, error) {
	var provider string
	err := r.db.QueryRow(`SELECT settings_storage_provider FROM users WHERE id = ?`, userID).Scan(&provider)
	if err == sql.ErrNoRows {
		return "none", nil
	}
	if err != nil {
		return "", err
	}
	return provider, nil
}

func (r *Repository) UpdateStorageProvider(userID, provider string) error {
	_, err := r.db.Exec(`
		UPDATE users SET settings_storage_provider = ?, updated_at = ? WHERE id = ?
	`, provider, time.Now(), userID)
	return err
}

// ==================== WORLDS ====================

func (r *Repository) GetWorlds(userID string) ([]models.World, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, COALESCE(project_id, ''), name, COALESCE(categories, ''), created_at, updated_at
		FROM worlds
		WHERE user_id = ?
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// Initialize with empty slice to avoid returning nil
	worlds := make([]models.World, 0)
	for rows.Next() {
		var w models.World
		var categories string
		if err := rows.Scan(&w.ID, &w.UserID, &w.ProjectID, &w.Name, &categories, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		if categories != "" {
			w.Categories = json.RawMessage(categories)
		}
		worlds = append(worlds, w)
	}

	return worlds, rows.Err()
}

func (r *Repository) GetWorld(worldID string) (*models.World, error) {
	var w models.World
	var categories string

	err := r.db.QueryRow(`
		SELECT id, user_id, COALESCE(project_id, ''), name, COALESCE(categories, ''), created_at, updated_at
		FROM worlds WHERE id = ?
	`, worldID).Scan(&w.ID, &w.UserID, &w.ProjectID, &w.Name, &categories, &w.CreatedAt, &w.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if categories != "" {
		w.Categories = json.RawMessage(categories)
	}
	return &w, nil
}

func (r *Repository) CreateWorld(world *models.World) error {
	if world.ID == "" {
		world.ID = uuid.New().String()
	}
	now := time.Now()
	if world.CreatedAt.IsZero() {
		world.CreatedAt = now
	}
	if world.UpdatedAt.IsZero() {
		world.UpdatedAt = now
	}

	_, err := r.db.Exec(`
		INSERT INTO worlds (id, user_id, project_id, name, categories, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		world.ID, world.UserID, world.ProjectID, world.Name, string(world.Categories),
		world.CreatedAt, world.UpdatedAt,
	)
	return err
}

func (r *Repository) UpdateWorld(worldID, name string, categories json.RawMessage) error {
	_, err := r.db.Exec(`
		UPDATE worlds SET name = ?, categories = ?, updated_at = ? WHERE id = ?
	`, name, string(categories), time.Now(), worldID)
	return err
}

func (r *Repository) DeleteWorld(worldID string) error {
	_, err := r.db.Exec("DELETE FROM worlds WHERE id = ?", worldID)
	return err
}

// DuplicateWorld inserts a copy of an existing world and returns the copy.
// The new ID is generated server-side; callers must not predict it.
func (r *Repository) DuplicateWorld(worldID string) (*models.World, error) {
	source, err := r.GetWorld(worldID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, sql.ErrNoRows
	}

	now := time.Now()
	dup := &models.World{
		ID:         uuid.New().String(),
		UserID:     source.UserID,
		ProjectID:  source.ProjectID,
		Name:       source.Name + " (Copy)",
		Categories: source.Categories,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := r.CreateWorld(dup); err != nil {
		return nil, err
	}

	return dup, nil
}

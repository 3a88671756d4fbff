package database

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scriptony/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepo(t *testing.T) (*Repository, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "scriptony-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := New(dbPath)
	require.NoError(t, err)

	err = db.Migrate()
	require.NoError(t, err)

	repo := NewRepository(db)

	// Create test user
	testUser := &models.User{
		ID:       "test-user",
		GoogleID: "google-123",
		Email:    "test@example.com",
		Name:     "Test User",
		Settings: models.UserSettings{
			Theme:           "dark",
			StorageProvider: "none",
		},
		CreatedAt:   time.Now(),
		LastLoginAt: time.Now(),
	}
	err = repo.UpsertUser(testUser)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}

	return repo, cleanup
}

func TestWorldCRUD(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	t.Run("Create assigns ID and timestamps", func(t *testing.T) {
		world := &models.World{
			UserID:     "test-user",
			Name:       "Aethel",
			Categories: json.RawMessage(`{"geography":{"climate":"temperate"}}`),
		}
		require.NoError(t, repo.CreateWorld(world))
		assert.NotEmpty(t, world.ID)
		assert.False(t, world.CreatedAt.IsZero())

		got, err := repo.GetWorld(world.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Aethel", got.Name)
		assert.JSONEq(t, `{"geography":{"climate":"temperate"}}`, string(got.Categories))
	})

	t.Run("GetWorlds returns empty slice for unknown user", func(t *testing.T) {
		worlds, err := repo.GetWorlds("nobody")
		require.NoError(t, err)
		assert.NotNil(t, worlds)
		assert.Empty(t, worlds)
	})

	t.Run("Update persists name and categories", func(t *testing.T) {
		world := &models.World{UserID: "test-user", Name: "Baruun"}
		require.NoError(t, repo.CreateWorld(world))

		require.NoError(t, repo.UpdateWorld(world.ID, "Baruun Revised", json.RawMessage(`{"politics":{}}`)))

		got, err := repo.GetWorld(world.ID)
		require.NoError(t, err)
		assert.Equal(t, "Baruun Revised", got.Name)
		assert.JSONEq(t, `{"politics":{}}`, string(got.Categories))
	})

	t.Run("Delete removes the row", func(t *testing.T) {
		world := &models.World{UserID: "test-user", Name: "Doomed"}
		require.NoError(t, repo.CreateWorld(world))
		require.NoError(t, repo.DeleteWorld(world.ID))

		got, err := repo.GetWorld(world.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("GetWorld returns nil for unknown ID", func(t *testing.T) {
		got, err := repo.GetWorld("missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestDuplicateWorld(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	source := &models.World{
		UserID:     "test-user",
		ProjectID:  "proj-1",
		Name:       "Aethel",
		Categories: json.RawMessage(`{"society":{"structure":"feudal"}}`),
	}
	require.NoError(t, repo.CreateWorld(source))

	dup, err := repo.DuplicateWorld(source.ID)
	require.NoError(t, err)

	// Server-side identity: a fresh ID and a marked name
	assert.NotEqual(t, source.ID, dup.ID)
	assert.Equal(t, "Aethel (Copy)", dup.Name)
	assert.Equal(t, source.ProjectID, dup.ProjectID)
	assert.JSONEq(t, string(source.Categories), string(dup.Categories))

	worlds, err := repo.GetWorlds("test-user")
	require.NoError(t, err)
	assert.Len(t, worlds, 2)
}

func TestStorageProviderPreference(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	provider, err := repo.GetStorageProvider("test-user")
	require.NoError(t, err)
	assert.Equal(t, "none", provider)

	require.NoError(t, repo.UpdateStorageProvider("test-user", "google_drive"))

	provider, err = repo.GetStorageProvider("test-user")
	require.NoError(t, err)
	assert.Equal(t, "google_drive", provider)

	// Unknown users read as none rather than an error
	provider, err = repo.GetStorageProvider("nobody")
	require.NoError(t, err)
	assert.Equal(t, "none", provider)
}

func TestUserSettingsRoundTrip(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	settings := models.UserSettings{
		Theme:           "light",
		StorageProvider: "google_drive",
		AutoSync:        true,
	}
	require.NoError(t, repo.UpdateUserSettings("test-user", settings))

	user, err := repo.GetUser("test-user")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, settings, user.Settings)
}

func TestUpsertUserKeepsSettingsOnRelogin(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	require.NoError(t, repo.UpdateUserSettings("test-user", models.UserSettings{
		Theme:           "light",
		StorageProvider: "google_drive",
	}))

	// A later login upserts profile fields without clobbering settings
	require.NoError(t, repo.UpsertUser(&models.User{
		ID:          "test-user",
		GoogleID:    "google-123",
		Email:       "renamed@example.com",
		Name:        "Renamed User",
		CreatedAt:   time.Now(),
		LastLoginAt: time.Now(),
	}))

	user, err := repo.GetUser("test-user")
	require.NoError(t, err)
	assert.Equal(t, "renamed@example.com", user.Email)
	assert.Equal(t, "light", user.Settings.Theme)
	assert.Equal(t, "google_drive", user.Settings.StorageProvider)
}

package session

import (
	"testing"
	"time"

	"scriptony/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createSession(t *testing.T, s *Store, userID string) *models.Session {
	t.Helper()
	sess, err := s.Create(userID, userID+"@example.com", "Test User", "",
		"access-"+userID, "refresh-"+userID, time.Now().Add(time.Hour),
		models.UserSettings{Theme: "dark", StorageProvider: "none"})
	require.NoError(t, err)
	return sess
}

func TestCreateAndGet(t *testing.T) {
	s := NewStore()
	sess := createSession(t, s, "user-1")

	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "access-user-1", got.AccessToken)

	got, err = s.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetByUserIDReturnsMostRecent(t *testing.T) {
	s := NewStore()
	first := createSession(t, s, "user-1")
	second := createSession(t, s, "user-1")
	createSession(t, s, "user-2")

	second.LastUsedAt = time.Now().Add(time.Minute)
	require.NoError(t, s.Update(second.ID, second))

	got := s.GetByUserID("user-1")
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)
	assert.NotEqual(t, first.ID, got.ID)

	assert.Nil(t, s.GetByUserID("nobody"))
}

func TestUpdateUserTokenCoversAllSessions(t *testing.T) {
	s := NewStore()
	a := createSession(t, s, "user-1")
	b := createSession(t, s, "user-1")

	expiry := time.Now().Add(2 * time.Hour)
	require.NoError(t, s.UpdateUserToken("user-1", "new-access", "new-refresh", expiry))

	for _, id := range []string{a.ID, b.ID} {
		sess, err := s.Get(id)
		require.NoError(t, err)
		assert.Equal(t, "new-access", sess.AccessToken)
		assert.Equal(t, "new-refresh", sess.RefreshToken)
		assert.True(t, expiry.Equal(sess.TokenExpiry))
	}
}

func TestUpdateUserTokenKeepsRefreshTokenWhenEmpty(t *testing.T) {
	s := NewStore()
	sess := createSession(t, s, "user-1")

	// Google only returns a refresh token on first consent; a refresh
	// without one must not wipe the stored token
	require.NoError(t, s.UpdateUserToken("user-1", "rotated-access", "", time.Now().Add(time.Hour)))

	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "rotated-access", got.AccessToken)
	assert.Equal(t, "refresh-user-1", got.RefreshToken)
}

func TestClearUserTokenKeepsSessionAlive(t *testing.T) {
	s := NewStore()
	sess := createSession(t, s, "user-1")

	require.NoError(t, s.ClearUserToken("user-1"))

	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got, "session must survive a credential wipe")
	assert.Empty(t, got.AccessToken)
	assert.Empty(t, got.RefreshToken)
	assert.True(t, got.TokenExpiry.IsZero())
}

func TestExpiredSessionsAreInvisible(t *testing.T) {
	s := NewStore()
	sess := createSession(t, s, "user-1")
	sess.ExpiresAt = time.Now().Add(-time.Minute)

	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Nil(t, s.GetByUserID("user-1"))

	s.CleanupExpired()
	assert.Nil(t, s.GetByUserID("user-1"))
}

func TestDelete(t *testing.T) {
	s := NewStore()
	sess := createSession(t, s, "user-1")

	require.NoError(t, s.Delete(sess.ID))
	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

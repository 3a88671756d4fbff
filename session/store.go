package session

import (
	"sync"
	"time"

	"scriptony/models"

	"github.com/google/uuid"
)

// Store keeps active sessions in memory. OAuth tokens live here and nowhere
// else, so clearing a session also clears the user's credential state.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*models.Session),
	}
}

func (s *Store) Create(userID, email, name, picture, accessToken, refreshToken string, tokenExpiry time.Time, settings models.UserSettings) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID := uuid.New().String()
	session := &models.Session{
		ID:           sessionID,
		UserID:       userID,
		Email:        email,
		Name:         name,
		Picture:      picture,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenExpiry:  tokenExpiry,
		Settings:     settings,
		ExpiresAt:    time.Now().Add(30 * 24 * time.Hour),
		CreatedAt:    time.Now(),
		LastUsedAt:   time.Now(),
	}

	s.sessions[sessionID] = session
	return session, nil
}

func (s *Store) Get(sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, nil
	}

	if time.Now().After(session.ExpiresAt) {
		return nil, nil
	}

	return session, nil
}

// GetByUserID returns the most recently used live session for a user
func (s *Store) GetByUserID(userID string) *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Session
	for _, session := range s.sessions {
		if session.UserID != userID || time.Now().After(session.ExpiresAt) {
			continue
		}
		if latest == nil || session.LastUsedAt.After(latest.LastUsedAt) {
			latest = session
		}
	}
	return latest
}

func (s *Store) Update(sessionID string, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.LastUsedAt = time.Now()
	s.sessions[sessionID] = session
	return nil
}

// UpdateUserToken replaces the OAuth token set on every live session of a
// user. All three fields are written together; a refresh that yielded no new
// refresh token keeps the old one.
func (s *Store) UpdateUserToken(userID, accessToken, refreshToken string, tokenExpiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, session := range s.sessions {
		if session.UserID != userID {
			continue
		}
		session.AccessToken = accessToken
		if refreshToken != "" {
			session.RefreshToken = refreshToken
		}
		session.TokenExpiry = tokenExpiry
	}
	return nil
}

// ClearUserToken wipes the OAuth token set from every session of a user,
// leaving the sessions themselves valid. Used on provider disconnect.
func (s *Store) ClearUserToken(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, session := range s.sessions {
		if session.UserID != userID {
			continue
		}
		session.AccessToken = ""
		session.RefreshToken = ""
		session.TokenExpiry = time.Time{}
	}
	return nil
}

func (s *Store) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

func (s *Store) CleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, session := range s.sessions {
		if time.Now().After(session.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
}

func (s *Store) StartCleanupRoutine() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			s.CleanupExpired()
		}
	}()
}

package services

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"scriptony/config"
	"scriptony/models"
	"scriptony/oauth"
	"scriptony/session"
	"scriptony/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// ==================== MOCKS ====================

type mockUserRepository struct {
	mu       sync.Mutex
	provider map[string]string
}

var _ UserRepository = (*mockUserRepository)(nil)

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{provider: make(map[string]string)}
}

func (m *mockUserRepository) GetUser(userID string) (*models.User, error) { return nil, nil }
func (m *mockUserRepository) UpsertUser(user *models.User) error          { return nil }
func (m *mockUserRepository) UpdateUserSettings(userID string, settings models.UserSettings) error {
	return nil
}

func (m *mockUserRepository) GetStorageProvider(userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.provider[userID]; ok {
		return p, nil
	}
	return "none", nil
}

func (m *mockUserRepository) UpdateStorageProvider(userID, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.provider[userID] = provider
	return nil
}

// stubProvider connects when built with a token and hands back the consent
// URL otherwise, mirroring the real Drive provider's contract.
type stubProvider struct {
	mu      sync.Mutex
	token   *oauth2.Token
	authURL string
	status  storage.Status
}

var _ storage.Provider = (*stubProvider)(nil)

func (p *stubProvider) Connect(ctx context.Context) storage.ConnectResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == nil {
		return storage.ConnectResult{AuthURL: p.authURL}
	}
	p.status = storage.Status{Connected: true, AccountEmail: "writer@scriptony.app"}
	return storage.ConnectResult{Connected: true}
}

func (p *stubProvider) IsConnected(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status.Connected
}

func (p *stubProvider) SaveFile(ctx context.Context, path string, content []byte) storage.SaveResult {
	return storage.SaveResult{Success: true, FilePath: path}
}

func (p *stubProvider) ReadFile(ctx context.Context, path string) ([]byte, error) { return nil, nil }

func (p *stubProvider) ListFiles(ctx context.Context, directory string) ([]string, error) {
	return nil, nil
}

func (p *stubProvider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = storage.Status{}
	return nil
}

func (p *stubProvider) SetProjectContext(projectID, projectName string) {}
func (p *stubProvider) Type() storage.ProviderType                     { return storage.TypeGoogleDrive }

func (p *stubProvider) Status() storage.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

type stubExchanger struct {
	calls int
}

func (s *stubExchanger) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	s.calls++
	return &oauth2.Token{
		AccessToken:  "drive-access",
		RefreshToken: "drive-refresh",
		Expiry:       time.Now().Add(time.Hour),
	}, nil
}

// ==================== HELPERS ====================

func setupStorageService(t *testing.T) (*StorageService, *session.Store, *mockUserRepository, *oauth.StateStore) {
	t.Helper()

	config.AppConfig = &config.Config{
		Env:               "test",
		GoogleClientID:    "client-id",
		PreviewHostSuffix: ".lovableproject.com",
		ProductionHost:    "scriptony.app",
		DriveRootFolder:   "Scriptony",
		RequestTimeout:    5 * time.Second,
		ExchangeTimeout:   5 * time.Second,
	}

	registry := storage.NewRegistry()
	registry.Register(storage.TypeGoogleDrive, func(ctx context.Context, cfg storage.ProviderConfig) (storage.Provider, error) {
		return &stubProvider{token: cfg.Token, authURL: cfg.AuthURL}, nil
	})

	sessions := session.NewStore()
	repo := newMockUserRepository()
	classifier := oauth.NewClassifier(".lovableproject.com", "scriptony.app")
	states := oauth.NewStateStore()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	ss := NewStorageService(registry, sessions, repo, classifier, states, &stubExchanger{}, logger)
	t.Cleanup(ss.Close)

	return ss, sessions, repo, states
}

func createUserSession(t *testing.T, sessions *session.Store, userID, accessToken string) {
	t.Helper()
	_, err := sessions.Create(userID, userID+"@example.com", "Writer", "",
		accessToken, "refresh", time.Now().Add(time.Hour), models.UserSettings{})
	require.NoError(t, err)
}

// ==================== TESTS ====================

func TestConnectWithoutTokenReturnsAuthURL(t *testing.T) {
	ss, sessions, repo, _ := setupStorageService(t)
	createUserSession(t, sessions, "user-1", "")

	result, err := ss.Connect(context.Background(), "user-1", "google_drive", "scriptony.app", "/settings")
	require.NoError(t, err)

	assert.False(t, result.Connected)
	assert.Contains(t, result.AuthURL, "client_id=client-id")
	assert.Contains(t, result.AuthURL, "auth%2Fgoogle%2Fdrive%2Fcallback")

	// No connection means no persisted preference yet
	provider, err := repo.GetStorageProvider("user-1")
	require.NoError(t, err)
	assert.Equal(t, "none", provider)
}

func TestConnectWithTokenConnectsImmediately(t *testing.T) {
	ss, sessions, repo, _ := setupStorageService(t)
	createUserSession(t, sessions, "user-1", "stored-access")

	result, err := ss.Connect(context.Background(), "user-1", "google_drive", "scriptony.app", "/")
	require.NoError(t, err)

	assert.True(t, result.Connected)
	assert.True(t, ss.Status("user-1").Connected)
	assert.Equal(t, storage.TypeGoogleDrive, ss.Provider("user-1"))

	provider, err := repo.GetStorageProvider("user-1")
	require.NoError(t, err)
	assert.Equal(t, "google_drive", provider)
}

func TestConnectRejectsUnsupportedProvider(t *testing.T) {
	ss, sessions, _, _ := setupStorageService(t)
	createUserSession(t, sessions, "user-1", "")

	_, err := ss.Connect(context.Background(), "user-1", "dropbox", "scriptony.app", "/")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestDriveCallbackConnectsAndPersistsToken(t *testing.T) {
	ss, sessions, repo, states := setupStorageService(t)
	createUserSession(t, sessions, "user-1", "")

	state, err := states.Issue(oauth.KindDrive, "/worlds")
	require.NoError(t, err)

	returnURL, status, err := ss.DriveCallback(context.Background(), "user-1", "auth-code", state, "scriptony.app")
	require.NoError(t, err)

	assert.Equal(t, "/worlds", returnURL)
	assert.True(t, status.Connected)

	// Token landed in the session store as a full set
	sess := sessions.GetByUserID("user-1")
	require.NotNil(t, sess)
	assert.Equal(t, "drive-access", sess.AccessToken)
	assert.Equal(t, "drive-refresh", sess.RefreshToken)

	provider, err := repo.GetStorageProvider("user-1")
	require.NoError(t, err)
	assert.Equal(t, "google_drive", provider)
}

func TestDriveCallbackReplayIsRejected(t *testing.T) {
	ss, sessions, _, states := setupStorageService(t)
	createUserSession(t, sessions, "user-1", "")

	state, err := states.Issue(oauth.KindDrive, "/")
	require.NoError(t, err)

	_, _, err = ss.DriveCallback(context.Background(), "user-1", "auth-code", state, "scriptony.app")
	require.NoError(t, err)

	_, _, err = ss.DriveCallback(context.Background(), "user-1", "auth-code", state, "scriptony.app")
	assert.ErrorIs(t, err, oauth.ErrCodeAlreadyProcessed)

	// The established connection is untouched by the replay
	assert.True(t, ss.Status("user-1").Connected)
}

func TestDisconnectClearsCredentialsAndPreference(t *testing.T) {
	ss, sessions, repo, _ := setupStorageService(t)
	createUserSession(t, sessions, "user-1", "stored-access")

	_, err := ss.Connect(context.Background(), "user-1", "google_drive", "scriptony.app", "/")
	require.NoError(t, err)

	require.NoError(t, ss.Disconnect(context.Background(), "user-1"))

	assert.False(t, ss.Status("user-1").Connected)
	assert.Equal(t, storage.TypeNone, ss.Provider("user-1"))

	sess := sessions.GetByUserID("user-1")
	require.NotNil(t, sess)
	assert.Empty(t, sess.AccessToken)

	provider, err := repo.GetStorageProvider("user-1")
	require.NoError(t, err)
	assert.Equal(t, "none", provider)
}

func TestDiagnoseReportsEnvironmentAndRedirects(t *testing.T) {
	ss, sessions, _, _ := setupStorageService(t)
	createUserSession(t, sessions, "user-1", "")

	diag := ss.Diagnose("user-1", "localhost:3000")
	assert.Equal(t, "local", diag.Environment)
	assert.Equal(t, "http://localhost:3000/auth/google/callback", diag.AuthRedirectURI)
	assert.Equal(t, "http://localhost:3000/auth/google/drive/callback", diag.DriveRedirectURI)
	assert.Equal(t, "none", diag.Provider)
	assert.False(t, diag.Status.Connected)
}

func TestResumePreferredReconnectsStoredProvider(t *testing.T) {
	ss, sessions, repo, _ := setupStorageService(t)
	createUserSession(t, sessions, "user-1", "stored-access")
	require.NoError(t, repo.UpdateStorageProvider("user-1", "google_drive"))

	ss.ResumePreferred(context.Background(), "user-1")

	assert.True(t, ss.Status("user-1").Connected)
	assert.Equal(t, storage.TypeGoogleDrive, ss.Provider("user-1"))
}

func TestResumePreferredSkipsWithoutTokenOrPreference(t *testing.T) {
	ss, sessions, repo, _ := setupStorageService(t)

	// Preference set but no token on the session
	createUserSession(t, sessions, "user-1", "")
	require.NoError(t, repo.UpdateStorageProvider("user-1", "google_drive"))
	ss.ResumePreferred(context.Background(), "user-1")
	assert.Equal(t, storage.TypeNone, ss.Provider("user-1"))

	// Token present but no stored preference
	createUserSession(t, sessions, "user-2", "stored-access")
	ss.ResumePreferred(context.Background(), "user-2")
	assert.Equal(t, storage.TypeNone, ss.Provider("user-2"))
}

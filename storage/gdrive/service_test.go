package gdrive

import (
	"context"
	"errors"
	"testing"

	"scriptony/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func newDisconnectedProvider(t *testing.T, cfg storage.ProviderConfig) *Provider {
	t.Helper()
	provider, err := New(context.Background(), cfg)
	require.NoError(t, err)
	return provider.(*Provider)
}

func TestNewWithoutTokenIsDisconnected(t *testing.T) {
	p := newDisconnectedProvider(t, storage.ProviderConfig{
		AuthURL: "https://accounts.google.com/o/oauth2/auth?state=abc",
	})

	result := p.Connect(context.Background())
	assert.False(t, result.Connected)
	assert.Equal(t, "https://accounts.google.com/o/oauth2/auth?state=abc", result.AuthURL)

	assert.False(t, p.IsConnected(context.Background()))
	assert.Equal(t, storage.TypeGoogleDrive, p.Type())
	assert.False(t, p.Status().Connected)
}

func TestOperationsRejectWhenNotConnected(t *testing.T) {
	p := newDisconnectedProvider(t, storage.ProviderConfig{})

	save := p.SaveFile(context.Background(), "worlds/worlds.json", []byte("{}"))
	assert.False(t, save.Success)
	assert.Equal(t, "not connected", save.Error)

	_, err := p.ReadFile(context.Background(), "worlds/worlds.json")
	assert.Error(t, err)

	_, err = p.ListFiles(context.Background(), "worlds")
	assert.Error(t, err)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	p := newDisconnectedProvider(t, storage.ProviderConfig{})

	assert.NoError(t, p.Disconnect(context.Background()))
	assert.NoError(t, p.Disconnect(context.Background()))
	assert.Equal(t, storage.Status{}, p.Status())
}

func TestCurrentTokenNilWithoutClient(t *testing.T) {
	p := newDisconnectedProvider(t, storage.ProviderConfig{})

	token, err := p.CurrentToken()
	assert.NoError(t, err)
	assert.Nil(t, token)
}

func TestAutoSyncNoOpWithoutClient(t *testing.T) {
	p := newDisconnectedProvider(t, storage.ProviderConfig{})

	// No scheduler exists before a token; both calls must be safe
	p.SetupAutoSync(storage.AutoSyncRegistration{
		GetContent: func(ctx context.Context) ([]byte, error) { return nil, nil },
		GetPath:    func() string { return "worlds/worlds.json" },
	})
	p.StopAutoSync()
}

func TestNoteErrorDowngradesOnAuthFailure(t *testing.T) {
	p := newDisconnectedProvider(t, storage.ProviderConfig{})
	p.mu.Lock()
	now := p.status
	now.Connected = true
	p.status = now
	p.mu.Unlock()

	p.noteError(&googleapi.Error{Code: 401})

	st := p.Status()
	assert.False(t, st.Connected)
	assert.False(t, st.IsSyncing)
	assert.Nil(t, st.LastSync)
	assert.Equal(t, "reauthorization required", st.Error)
}

func TestNoteErrorKeepsConnectionOnTransientFailure(t *testing.T) {
	p := newDisconnectedProvider(t, storage.ProviderConfig{})
	p.mu.Lock()
	p.status.Connected = true
	p.mu.Unlock()

	p.noteError(errors.New("backend timeout"))

	st := p.Status()
	assert.True(t, st.Connected)
	assert.Equal(t, "backend timeout", st.Error)
}

func TestSetProjectContextUpdatesStoragePath(t *testing.T) {
	p := newDisconnectedProvider(t, storage.ProviderConfig{RootFolder: "Scriptony"})
	p.mu.Lock()
	p.status.Connected = true
	p.status.StoragePath = "Scriptony"
	p.mu.Unlock()

	p.SetProjectContext("proj-1", "Iron Kingdoms")
	assert.Equal(t, "Scriptony/Iron Kingdoms", p.Status().StoragePath)

	// Clearing project context falls back to the root folder
	p.SetProjectContext("", "")
	assert.Equal(t, "Scriptony", p.Status().StoragePath)
}

func TestSetSyncingRequiresConnection(t *testing.T) {
	p := newDisconnectedProvider(t, storage.ProviderConfig{})

	p.setSyncing(true)
	assert.False(t, p.Status().IsSyncing)

	p.mu.Lock()
	p.status.Connected = true
	p.mu.Unlock()

	p.setSyncing(true)
	assert.True(t, p.Status().IsSyncing)
	p.setSyncing(false)
	assert.False(t, p.Status().IsSyncing)
}

func TestDefaultsApplied(t *testing.T) {
	p := newDisconnectedProvider(t, storage.ProviderConfig{})
	assert.Equal(t, "Scriptony", p.rootFolder)
	assert.Equal(t, defaultTimeout, p.timeout)
}

package storage

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// ProviderType identifies a storage backend. Exactly one type is active per
// user session.
type ProviderType string

const (
	TypeNone        ProviderType = "none"
	TypeGoogleDrive ProviderType = "google_drive"

	// Declared but not yet implemented
	TypeLocal   ProviderType = "local"
	TypeDropbox ProviderType = "dropbox"
)

// ParseProviderType maps a wire string onto a known type, defaulting to none
func ParseProviderType(s string) ProviderType {
	switch ProviderType(s) {
	case TypeGoogleDrive, TypeLocal, TypeDropbox:
		return ProviderType(s)
	default:
		return TypeNone
	}
}

// Status is a value snapshot of a provider's connection state.
// IsSyncing is only ever true while Connected is true; LastSync is
// monotonically non-decreasing while connected and nil after disconnect.
type Status struct {
	Connected    bool       `json:"connected"`
	AccountEmail string     `json:"accountEmail,omitempty"`
	StoragePath  string     `json:"storagePath,omitempty"`
	LastSync     *time.Time `json:"lastSync,omitempty"`
	IsSyncing    bool       `json:"isSyncing"`
	Error        string     `json:"error,omitempty"`
}

// SaveResult reports a write. Failures surface here, not as errors, so
// callers branch on Success instead of unwinding.
type SaveResult struct {
	Success  bool   `json:"success"`
	FileID   string `json:"fileId,omitempty"`
	FilePath string `json:"filePath,omitempty"`
	FileURL  string `json:"fileUrl,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ConnectResult reports a connection attempt. Redirect flows return an
// AuthURL and complete asynchronously; Connected is true only when the
// connection was already established when Connect returned.
type ConnectResult struct {
	Connected bool   `json:"connected"`
	AuthURL   string `json:"authUrl,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Provider is the capability set every storage backend exposes.
type Provider interface {
	// Connect initiates the connection. For token-less providers this
	// yields an AuthURL; the eventual state is observed via Status.
	Connect(ctx context.Context) ConnectResult

	// IsConnected is the authoritative check and may hit the network to
	// validate stored credentials.
	IsConnected(ctx context.Context) bool

	// SaveFile upserts content at a logical path, creating any missing
	// intermediate folders. Idempotent by path.
	SaveFile(ctx context.Context, path string, content []byte) SaveResult

	// ReadFile returns nil, nil when the path does not exist.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	ListFiles(ctx context.Context, directory string) ([]string, error)

	// Disconnect clears local credential state; safe when already
	// disconnected.
	Disconnect(ctx context.Context) error

	// SetProjectContext scopes file operations to a per-project subfolder.
	SetProjectContext(projectID, projectName string)

	Type() ProviderType
	Status() Status
}

// AutoSyncRegistration describes a periodic content push. GetPath is
// re-evaluated every tick since the target may be renamed mid-session.
type AutoSyncRegistration struct {
	GetContent func(ctx context.Context) ([]byte, error)
	GetPath    func() string
	Interval   time.Duration
}

// AutoSyncer is the optional auto-sync capability. Absence is signaled by
// the provider not implementing the interface.
type AutoSyncer interface {
	SetupAutoSync(reg AutoSyncRegistration)
	StopAutoSync()
}

// TokenHolder is implemented by providers whose credentials can be
// refreshed underneath them; the manager mirrors refreshed tokens back
// into the session store.
type TokenHolder interface {
	CurrentToken() (*oauth2.Token, error)
}

// ProviderConfig carries everything a factory needs to build a provider
// bound to one user connection.
type ProviderConfig struct {
	UserID      string
	Token       *oauth2.Token
	RootFolder  string
	ProjectID   string
	ProjectName string

	// AuthURL is the pre-built consent URL handed back by Connect when no
	// valid token is present.
	AuthURL string

	RequestTimeout time.Duration
}

// Factory builds a provider instance for one connection.
type Factory func(ctx context.Context, cfg ProviderConfig) (Provider, error)

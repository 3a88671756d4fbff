package gdrive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"scriptony/autosync"
	"scriptony/storage"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
)

const (
	defaultTimeout = 15 * time.Second

	// errReauthRequired is the status error set when the refresh token is
	// revoked or expired; the user must repeat the full OAuth flow.
	errReauthRequired = "reauthorization required"
)

// Provider implements the storage contract against Google Drive. All file
// operations are scoped to the configured root folder, or a project
// subfolder when project context is set.
type Provider struct {
	client    *Client
	folders   *FolderManager
	files     *FileManager
	scheduler *autosync.Scheduler
	logger    *slog.Logger

	rootFolder string
	authURL    string
	timeout    time.Duration

	mu           sync.Mutex
	projectID    string
	projectName  string
	status       storage.Status
	disconnected bool
}

var _ storage.Provider = (*Provider)(nil)
var _ storage.AutoSyncer = (*Provider)(nil)
var _ storage.TokenHolder = (*Provider)(nil)

// New builds a Drive provider for one connection. A nil token produces a
// disconnected provider whose Connect hands back the consent URL.
func New(ctx context.Context, cfg storage.ProviderConfig) (storage.Provider, error) {
	p := &Provider{
		rootFolder:  cfg.RootFolder,
		authURL:     cfg.AuthURL,
		timeout:     cfg.RequestTimeout,
		projectID:   cfg.ProjectID,
		projectName: cfg.ProjectName,
		logger:      slog.Default().With("component", "gdrive"),
	}
	if p.rootFolder == "" {
		p.rootFolder = "Scriptony"
	}
	if p.timeout <= 0 {
		p.timeout = defaultTimeout
	}

	if cfg.Token != nil && cfg.Token.AccessToken != "" {
		client, err := NewClient(ctx, cfg.Token, cfg.UserID)
		if err != nil {
			return nil, err
		}
		p.client = client
		p.folders = NewFolderManager(client)
		p.files = NewFileManager(client)
		p.logger = p.logger.With("user_id", client.UserID())
		p.scheduler = autosync.NewScheduler(p.autoSyncSave, p.recordSyncError, p.logger)
	}

	return p, nil
}

func (p *Provider) Type() storage.ProviderType {
	return storage.TypeGoogleDrive
}

func (p *Provider) Status() storage.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Connect validates stored credentials and resolves the account identity.
// Without a token it returns the consent URL; the eventual state is then
// observed through Status after the OAuth callback completes.
func (p *Provider) Connect(ctx context.Context) storage.ConnectResult {
	if !p.usable() {
		return storage.ConnectResult{AuthURL: p.authURL}
	}

	ctx, cancel := p.opContext(ctx)
	defer cancel()

	about, err := withRetry(ctx, func() (*drive.About, error) {
		return p.client.Service().About.Get().Fields("user(emailAddress)").Context(ctx).Do()
	})
	if err != nil {
		p.setConnectError(err)
		return storage.ConnectResult{Error: p.Status().Error}
	}

	p.mu.Lock()
	p.status = storage.Status{
		Connected:    true,
		AccountEmail: about.User.EmailAddress,
		StoragePath:  p.storagePathLocked(),
	}
	p.mu.Unlock()

	return storage.ConnectResult{Connected: true}
}

// IsConnected performs an authoritative credential check.
func (p *Provider) IsConnected(ctx context.Context) bool {
	if !p.usable() {
		return false
	}

	ctx, cancel := p.opContext(ctx)
	defer cancel()

	_, err := withRetry(ctx, func() (*drive.About, error) {
		return p.client.Service().About.Get().Fields("user(emailAddress)").Context(ctx).Do()
	})
	if err != nil {
		p.setConnectError(err)
		return false
	}
	return p.Status().Connected
}

// SaveFile upserts content at a logical path. The leaf is found by name in
// its resolved parent and updated in place; missing folder segments are
// created on the way down.
func (p *Provider) SaveFile(ctx context.Context, logicalPath string, content []byte) storage.SaveResult {
	if !p.usable() {
		return storage.SaveResult{Error: "not connected"}
	}

	folders, filename, err := splitLogicalPath(logicalPath)
	if err != nil {
		return storage.SaveResult{Error: err.Error()}
	}

	ctx, cancel := p.opContext(ctx)
	defer cancel()

	p.setSyncing(true)
	defer p.setSyncing(false)

	parentID, err := p.resolveFolders(ctx, folders, true)
	if err != nil {
		return p.saveFailure(err)
	}

	existing, err := p.files.Find(ctx, filename, parentID)
	if err != nil {
		return p.saveFailure(err)
	}

	var fileID, fileURL string
	if existing != nil {
		if err := p.files.Update(ctx, existing.Id, content); err != nil {
			return p.saveFailure(err)
		}
		fileID = existing.Id
		fileURL = existing.WebViewLink
	} else {
		created, err := p.files.Create(ctx, filename, parentID, contentMimeType(filename), content)
		if err != nil {
			return p.saveFailure(err)
		}
		fileID = created.Id
		fileURL = created.WebViewLink
	}

	now := time.Now()
	p.mu.Lock()
	p.status.LastSync = &now
	p.status.Error = ""
	p.mu.Unlock()

	return storage.SaveResult{
		Success:  true,
		FileID:   fileID,
		FilePath: logicalPath,
		FileURL:  fileURL,
	}
}

// ReadFile returns nil, nil when any path segment or the leaf is missing.
func (p *Provider) ReadFile(ctx context.Context, logicalPath string) ([]byte, error) {
	if !p.usable() {
		return nil, fmt.Errorf("not connected")
	}

	folders, filename, err := splitLogicalPath(logicalPath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := p.opContext(ctx)
	defer cancel()

	parentID, err := p.resolveFolders(ctx, folders, false)
	if err != nil {
		p.noteError(err)
		return nil, err
	}
	if parentID == "" {
		return nil, nil
	}

	file, err := p.files.Find(ctx, filename, parentID)
	if err != nil {
		p.noteError(err)
		return nil, err
	}
	if file == nil {
		return nil, nil
	}

	return p.files.Download(ctx, file.Id)
}

func (p *Provider) ListFiles(ctx context.Context, directory string) ([]string, error) {
	if !p.usable() {
		return nil, fmt.Errorf("not connected")
	}

	ctx, cancel := p.opContext(ctx)
	defer cancel()

	segments, err := splitDirectory(directory)
	if err != nil {
		return nil, err
	}

	parentID, err := p.resolveFolders(ctx, segments, false)
	if err != nil {
		p.noteError(err)
		return nil, err
	}
	if parentID == "" {
		return []string{}, nil
	}

	return p.files.ListNames(ctx, parentID)
}

// Disconnect clears local credential state. Tokens live in the session
// store and are cleared by the caller; the provider marks itself dead so
// no operation touches the API again. Calling this twice is harmless.
func (p *Provider) Disconnect(ctx context.Context) error {
	p.StopAutoSync()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.disconnected = true
	p.status = storage.Status{}
	return nil
}

// usable reports whether the provider holds a live client.
func (p *Provider) usable() bool {
	if p.client == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.disconnected
}

// SetProjectContext re-scopes file operations to a project subfolder.
// Cached folder IDs belong to the old scope and are dropped.
func (p *Provider) SetProjectContext(projectID, projectName string) {
	p.mu.Lock()
	p.projectID = projectID
	p.projectName = projectName
	if p.status.Connected {
		p.status.StoragePath = p.storagePathLocked()
	}
	folders := p.folders
	p.mu.Unlock()

	if folders != nil {
		folders.InvalidateCache()
	}
}

func (p *Provider) CurrentToken() (*oauth2.Token, error) {
	if p.client == nil {
		return nil, nil
	}
	return p.client.CurrentToken()
}

// SetupAutoSync registers the periodic content push; re-registering
// replaces the previous timer.
func (p *Provider) SetupAutoSync(reg storage.AutoSyncRegistration) {
	if p.scheduler == nil {
		return
	}
	p.scheduler.Register(reg)
}

func (p *Provider) StopAutoSync() {
	if p.scheduler == nil {
		return
	}
	p.scheduler.Stop()
}

// ==================== INTERNAL ====================

// resolveFolders walks the segment chain under the scoped root. With
// create=false a missing segment short-circuits to "" so reads can report
// not-found instead of materializing folders.
func (p *Provider) resolveFolders(ctx context.Context, segments []string, create bool) (string, error) {
	parentID, err := p.scopedRoot(ctx, create)
	if err != nil || parentID == "" {
		return parentID, err
	}

	for _, segment := range segments {
		var id string
		if create {
			id, err = p.folders.GetOrCreate(ctx, segment, parentID)
		} else {
			id, err = p.folders.Find(ctx, segment, parentID)
		}
		if err != nil {
			return "", err
		}
		if id == "" {
			return "", nil
		}
		parentID = id
	}

	return parentID, nil
}

// scopedRoot resolves the application root folder, descending into the
// project subfolder when project context is set.
func (p *Provider) scopedRoot(ctx context.Context, create bool) (string, error) {
	p.mu.Lock()
	projectName := p.projectName
	p.mu.Unlock()

	var rootID string
	var err error
	if create {
		rootID, err = p.folders.GetOrCreate(ctx, p.rootFolder, "")
	} else {
		rootID, err = p.folders.Find(ctx, p.rootFolder, "")
	}
	if err != nil || rootID == "" || projectName == "" {
		return rootID, err
	}

	if create {
		return p.folders.GetOrCreate(ctx, projectName, rootID)
	}
	return p.folders.Find(ctx, projectName, rootID)
}

func (p *Provider) storagePathLocked() string {
	if p.projectName != "" {
		return p.rootFolder + "/" + p.projectName
	}
	return p.rootFolder
}

func (p *Provider) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}

func (p *Provider) setSyncing(syncing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// isSyncing is only meaningful while connected
	p.status.IsSyncing = syncing && p.status.Connected
}

// saveFailure converts a write error into a SaveResult, downgrading the
// connection on authorization failures.
func (p *Provider) saveFailure(err error) storage.SaveResult {
	p.noteError(err)
	return storage.SaveResult{Error: p.Status().Error}
}

// noteError records an operation error into status. Authorization errors
// disconnect: the refresh token is gone and only a new OAuth flow helps.
func (p *Provider) noteError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if isAuthError(err) {
		p.status.Connected = false
		p.status.IsSyncing = false
		p.status.LastSync = nil
		p.status.Error = errReauthRequired
		return
	}
	p.status.Error = err.Error()
}

func (p *Provider) setConnectError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.Connected = false
	p.status.IsSyncing = false
	p.status.LastSync = nil
	if isAuthError(err) {
		p.status.Error = errReauthRequired
	} else {
		// Raw provider errors (redirect URI mismatch and friends) stay
		// verbatim for diagnostics
		p.status.Error = err.Error()
	}
}

// autoSyncSave adapts SaveFile for the scheduler.
func (p *Provider) autoSyncSave(ctx context.Context, path string, content []byte) error {
	result := p.SaveFile(ctx, path, content)
	if !result.Success {
		return fmt.Errorf("auto-sync save failed: %s", result.Error)
	}
	return nil
}

func (p *Provider) recordSyncError(err error) {
	p.noteError(err)
}

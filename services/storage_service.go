package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"scriptony/config"
	"scriptony/oauth"
	"scriptony/storage"

	"golang.org/x/oauth2"
)

// StorageService owns one storage manager per user and drives the
// connect / callback / disconnect lifecycle. It is the only component that
// instantiates providers.
type StorageService struct {
	registry   *storage.Registry
	sessions   SessionStore
	repo       UserRepository
	classifier *oauth.Classifier
	states     *oauth.StateStore
	processor  *oauth.Processor
	logger     *slog.Logger

	mu       sync.Mutex
	managers map[string]*storage.Manager
}

func NewStorageService(registry *storage.Registry, sessions SessionStore, repo UserRepository, classifier *oauth.Classifier, states *oauth.StateStore, exchanger oauth.Exchanger, logger *slog.Logger) *StorageService {
	return &StorageService{
		registry:   registry,
		sessions:   sessions,
		repo:       repo,
		classifier: classifier,
		states:     states,
		processor:  oauth.NewProcessor(states, exchanger),
		logger:     logger,
		managers:   make(map[string]*storage.Manager),
	}
}

// managerFor lazily builds the per-user manager. Refreshed tokens are
// mirrored back into the session store so they survive reconnects.
func (ss *StorageService) managerFor(userID string) *storage.Manager {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	mgr, ok := ss.managers[userID]
	if !ok {
		mgr = storage.NewManager(userID, ss.registry, ss.logger,
			storage.WithTokenRefreshHook(func(token *oauth2.Token) {
				if err := ss.sessions.UpdateUserToken(userID, token.AccessToken, token.RefreshToken, token.Expiry); err != nil {
					ss.logger.Warn("failed to store refreshed token", "user_id", userID, "error", err)
				}
			}),
		)
		ss.managers[userID] = mgr
	}
	return mgr
}

// Connect starts the connection flow for a provider type. With a usable
// token in the session the provider connects immediately; otherwise the
// result carries the consent URL and the flow completes in DriveCallback.
func (ss *StorageService) Connect(ctx context.Context, userID, providerName, host, originalURL string) (storage.ConnectResult, error) {
	typ := storage.ParseProviderType(providerName)
	if !ss.registry.Supports(typ) {
		return storage.ConnectResult{Error: ErrProviderUnavailable.Error()}, ErrProviderUnavailable
	}

	cfg, err := ss.providerConfig(userID, host, originalURL)
	if err != nil {
		return storage.ConnectResult{Error: err.Error()}, err
	}

	result, err := ss.managerFor(userID).ConnectProvider(ctx, typ, cfg)
	if err != nil {
		return result, err
	}

	if result.Connected {
		if err := ss.repo.UpdateStorageProvider(userID, string(typ)); err != nil {
			ss.logger.Warn("failed to persist provider preference", "user_id", userID, "error", err)
		}
	}
	return result, nil
}

// DriveCallback completes the Drive OAuth redirect: exactly-once code
// exchange, token persistence (all-or-nothing), provider re-instantiation,
// and provider-preference persistence. Returns the URL the user should
// land back on.
func (ss *StorageService) DriveCallback(ctx context.Context, userID, code, state, host string) (string, storage.Status, error) {
	redirectURI := ss.classifier.ComputeRedirectURI(oauth.KindDrive, host)

	result, err := ss.processor.Process(ctx, code, state, oauth.KindDrive, redirectURI,
		func(ctx context.Context, token *oauth2.Token) error {
			// Full token set or nothing: persistence and reconnect happen
			// only after a successful exchange
			if err := ss.sessions.UpdateUserToken(userID, token.AccessToken, token.RefreshToken, token.Expiry); err != nil {
				return err
			}

			cfg := storage.ProviderConfig{
				Token:          token,
				RootFolder:     config.AppConfig.DriveRootFolder,
				RequestTimeout: config.AppConfig.RequestTimeout,
			}
			connected, err := ss.managerFor(userID).Reconnect(ctx, storage.TypeGoogleDrive, cfg)
			if err != nil {
				return err
			}
			if !connected.Connected {
				return ErrNotConnected
			}
			return ss.repo.UpdateStorageProvider(userID, string(storage.TypeGoogleDrive))
		})
	if err != nil {
		return "", ss.Status(userID), err
	}

	return result.ReturnURL, ss.Status(userID), nil
}

// Disconnect tears down the provider and clears the user's stored Drive
// credentials and preference.
func (ss *StorageService) Disconnect(ctx context.Context, userID string) error {
	err := ss.managerFor(userID).DisconnectProvider(ctx)

	if clearErr := ss.sessions.ClearUserToken(userID); clearErr != nil && err == nil {
		err = clearErr
	}
	if prefErr := ss.repo.UpdateStorageProvider(userID, string(storage.TypeNone)); prefErr != nil && err == nil {
		err = prefErr
	}
	return err
}

// ResumePreferred reconnects the user's persisted provider choice when the
// session already holds a usable token. Called after login; a resume failure
// is logged, not surfaced, since the user can connect manually.
func (ss *StorageService) ResumePreferred(ctx context.Context, userID string) {
	pref, err := ss.repo.GetStorageProvider(userID)
	if err != nil || pref == "" || pref == string(storage.TypeNone) {
		return
	}

	typ := storage.ParseProviderType(pref)
	if !ss.registry.Supports(typ) {
		return
	}

	sess := ss.sessions.GetByUserID(userID)
	if sess == nil || sess.AccessToken == "" {
		return
	}

	cfg := storage.ProviderConfig{
		Token: &oauth2.Token{
			AccessToken:  sess.AccessToken,
			RefreshToken: sess.RefreshToken,
			Expiry:       sess.TokenExpiry,
		},
		RootFolder:     config.AppConfig.DriveRootFolder,
		RequestTimeout: config.AppConfig.RequestTimeout,
	}

	result, err := ss.managerFor(userID).ConnectProvider(ctx, typ, cfg)
	if err != nil {
		ss.logger.Warn("failed to resume storage provider", "user_id", userID, "provider", pref, "error", err)
		return
	}
	if !result.Connected {
		ss.logger.Info("stored provider needs reauthorization", "user_id", userID, "provider", pref)
	}
}

func (ss *StorageService) SetProjectContext(userID, projectID, projectName string) {
	ss.managerFor(userID).SetProjectContext(projectID, projectName)
}

// Status returns the cached provider status for a user.
func (ss *StorageService) Status(userID string) storage.Status {
	return ss.managerFor(userID).Status()
}

// Provider returns the active provider type for a user.
func (ss *StorageService) Provider(userID string) storage.ProviderType {
	return ss.managerFor(userID).Type()
}

// Subscribe exposes status-change notifications for a user's connection.
func (ss *StorageService) Subscribe(userID string) (<-chan storage.Status, func()) {
	return ss.managerFor(userID).Subscribe()
}

// EnableAutoSync registers a periodic content push on the active provider;
// a no-op when the provider lacks the capability.
func (ss *StorageService) EnableAutoSync(userID string, interval time.Duration, getContent func(ctx context.Context) ([]byte, error), getPath func() string) {
	ss.managerFor(userID).SetupAutoSync(storage.AutoSyncRegistration{
		GetContent: getContent,
		GetPath:    getPath,
		Interval:   interval,
	})
}

func (ss *StorageService) DisableAutoSync(userID string) {
	ss.managerFor(userID).StopAutoSync()
}

// Close tears down every user's manager, stopping auto-sync and polling.
func (ss *StorageService) Close() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	for userID, mgr := range ss.managers {
		mgr.Close()
		delete(ss.managers, userID)
	}
}

// providerConfig assembles the per-connection config: the session token
// when one exists, else a pre-built consent URL for the redirect flow.
func (ss *StorageService) providerConfig(userID, host, originalURL string) (storage.ProviderConfig, error) {
	cfg := storage.ProviderConfig{
		RootFolder:     config.AppConfig.DriveRootFolder,
		RequestTimeout: config.AppConfig.RequestTimeout,
	}

	if sess := ss.sessions.GetByUserID(userID); sess != nil && sess.AccessToken != "" {
		cfg.Token = &oauth2.Token{
			AccessToken:  sess.AccessToken,
			RefreshToken: sess.RefreshToken,
			Expiry:       sess.TokenExpiry,
		}
		return cfg, nil
	}

	state, err := ss.states.Issue(oauth.KindDrive, originalURL)
	if err != nil {
		return cfg, err
	}

	redirectURI := ss.classifier.ComputeRedirectURI(oauth.KindDrive, host)
	cfg.AuthURL = oauth.AuthCodeURL(state, redirectURI, oauth.DriveScopes)
	return cfg, nil
}

// Diagnostics reports environment and connectivity facts without touching
// connection state.
type Diagnostics struct {
	Environment      string         `json:"environment"`
	AuthRedirectURI  string         `json:"authRedirectUri"`
	DriveRedirectURI string         `json:"driveRedirectUri"`
	Provider         string         `json:"provider"`
	Status           storage.Status `json:"status"`
}

func (ss *StorageService) Diagnose(userID, host string) Diagnostics {
	mgr := ss.managerFor(userID)
	return Diagnostics{
		Environment:      string(ss.classifier.Classify(host)),
		AuthRedirectURI:  ss.classifier.ComputeRedirectURI(oauth.KindAuth, host),
		DriveRedirectURI: ss.classifier.ComputeRedirectURI(oauth.KindDrive, host),
		Provider:         string(mgr.Type()),
		Status:           mgr.Status(),
	}
}

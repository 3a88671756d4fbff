package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const defaultPollInterval = 5 * time.Second

// Manager owns the single live provider instance for one user session and
// is the sole writer of its cached status. Everything else reads status
// through the manager or a subscription.
type Manager struct {
	userID       string
	registry     *Registry
	logger       *slog.Logger
	pollInterval time.Duration

	// onTokenRefresh mirrors a silently refreshed OAuth token back into the
	// session store so a restart doesn't lose it
	onTokenRefresh func(token *oauth2.Token)

	// connectMu serializes instantiation and teardown: the factory call
	// runs without holding mu, so without this a second connect could slip
	// past the nil-check and leave two live instances with two pollers.
	connectMu sync.Mutex

	mu          sync.Mutex
	provider    Provider
	typ         ProviderType
	status      Status
	projectID   string
	projectName string
	stopPoll    chan struct{}
	subscribers map[int]chan Status
	nextSubID   int
	lastToken   *oauth2.Token
}

type ManagerOption func(*Manager)

func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) { m.pollInterval = d }
}

func WithTokenRefreshHook(fn func(token *oauth2.Token)) ManagerOption {
	return func(m *Manager) { m.onTokenRefresh = fn }
}

func NewManager(userID string, registry *Registry, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		userID:       userID,
		registry:     registry,
		logger:       logger,
		pollInterval: defaultPollInterval,
		typ:          TypeNone,
		subscribers:  make(map[int]chan Status),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ConnectProvider instantiates and connects a provider of the given type.
// A live instance of a different type is fully torn down first: auto-sync
// and polling timers stop and the old instance is dropped before the new
// one exists, so two instances never overlap.
func (m *Manager) ConnectProvider(ctx context.Context, typ ProviderType, cfg ProviderConfig) (ConnectResult, error) {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()
	return m.connect(ctx, typ, cfg)
}

// connect runs with connectMu held: teardown, the factory call and the
// assignment never interleave with another connect or disconnect.
func (m *Manager) connect(ctx context.Context, typ ProviderType, cfg ProviderConfig) (ConnectResult, error) {
	m.mu.Lock()
	if m.provider != nil && m.typ != typ {
		m.teardownLocked(ctx)
	}

	provider := m.provider
	if provider == nil {
		cfg.UserID = m.userID
		cfg.ProjectID = m.projectID
		cfg.ProjectName = m.projectName
		m.mu.Unlock()

		built, err := m.registry.New(ctx, typ, cfg)
		if err != nil {
			return ConnectResult{Error: err.Error()}, err
		}

		m.mu.Lock()
		m.provider = built
		m.typ = typ
		m.stopPoll = make(chan struct{})
		m.lastToken = cfg.Token
		go m.pollLoop(m.stopPoll)
		provider = built
	}
	m.mu.Unlock()

	result := provider.Connect(ctx)
	m.refreshStatus()
	return result, nil
}

// Reconnect tears down any live instance unconditionally and connects a
// fresh one. Used after an OAuth callback completes, when the token-less
// instance that produced the consent URL must be replaced.
func (m *Manager) Reconnect(ctx context.Context, typ ProviderType, cfg ProviderConfig) (ConnectResult, error) {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	m.teardownLocked(ctx)
	m.mu.Unlock()

	return m.connect(ctx, typ, cfg)
}

// DisconnectProvider delegates to the live provider and refreshes the
// cached status. Safe to call with no provider active.
func (m *Manager) DisconnectProvider(ctx context.Context) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	provider := m.provider
	m.teardownLocked(ctx)
	m.mu.Unlock()

	if provider == nil {
		return nil
	}

	err := provider.Disconnect(ctx)
	m.publish(Status{})
	return err
}

// SetProjectContext forwards project scoping to the live provider, or
// stores it for the next instantiation when none is active.
func (m *Manager) SetProjectContext(projectID, projectName string) {
	m.mu.Lock()
	m.projectID = projectID
	m.projectName = projectName
	provider := m.provider
	m.mu.Unlock()

	if provider != nil {
		provider.SetProjectContext(projectID, projectName)
	}
}

// SetupAutoSync delegates to the provider when it supports the capability;
// a provider without auto-sync makes this a no-op.
func (m *Manager) SetupAutoSync(reg AutoSyncRegistration) {
	m.mu.Lock()
	provider := m.provider
	m.mu.Unlock()

	if syncer, ok := provider.(AutoSyncer); ok && provider != nil {
		syncer.SetupAutoSync(reg)
	}
}

func (m *Manager) StopAutoSync() {
	m.mu.Lock()
	provider := m.provider
	m.mu.Unlock()

	if syncer, ok := provider.(AutoSyncer); ok && provider != nil {
		syncer.StopAutoSync()
	}
}

// Type returns the active provider type, TypeNone when disconnected
func (m *Manager) Type() ProviderType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.typ
}

// Status returns the cached status snapshot. Worst-case staleness is the
// poll interval; Refresh forces an immediate read.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) Refresh() Status {
	m.refreshStatus()
	return m.Status()
}

// Subscribe returns a channel receiving status snapshots on every change,
// plus a cancel func. Slow subscribers drop updates rather than block the
// manager.
func (m *Manager) Subscribe() (<-chan Status, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	ch := make(chan Status, 8)
	m.subscribers[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close stops timers and drops the provider without revoking credentials.
// Taking connectMu first means a connect in flight finishes assigning
// before teardown runs, so its poller cannot outlive the close.
func (m *Manager) Close() {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked(context.Background())
}

// teardownLocked stops the auto-sync timer and the status poller, then
// drops the provider reference. Caller holds m.mu.
func (m *Manager) teardownLocked(ctx context.Context) {
	if syncer, ok := m.provider.(AutoSyncer); ok && m.provider != nil {
		syncer.StopAutoSync()
	}
	if m.stopPoll != nil {
		close(m.stopPoll)
		m.stopPoll = nil
	}
	m.provider = nil
	m.typ = TypeNone
	m.status = Status{}
	m.lastToken = nil
}

func (m *Manager) pollLoop(stop chan struct{}) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.refreshStatus()
		case <-stop:
			return
		}
	}
}

// refreshStatus reads the provider's status into the cache, publishing to
// subscribers when it changed, and mirrors refreshed tokens.
func (m *Manager) refreshStatus() {
	m.mu.Lock()
	provider := m.provider
	m.mu.Unlock()

	if provider == nil {
		return
	}

	st := provider.Status()

	m.mu.Lock()
	changed := !statusEqual(st, m.status)
	m.status = st
	m.mu.Unlock()

	if changed {
		m.publish(st)
	}

	m.mirrorRefreshedToken(provider)
}

func (m *Manager) publish(st Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = st
	for _, ch := range m.subscribers {
		select {
		case ch <- st:
		default:
		}
	}
}

// statusEqual compares snapshots by value; LastSync is a pointer and would
// otherwise report a change on every poll.
func statusEqual(a, b Status) bool {
	if a.Connected != b.Connected || a.AccountEmail != b.AccountEmail ||
		a.StoragePath != b.StoragePath || a.IsSyncing != b.IsSyncing || a.Error != b.Error {
		return false
	}
	switch {
	case a.LastSync == nil && b.LastSync == nil:
		return true
	case a.LastSync == nil || b.LastSync == nil:
		return false
	default:
		return a.LastSync.Equal(*b.LastSync)
	}
}

func (m *Manager) mirrorRefreshedToken(provider Provider) {
	holder, ok := provider.(TokenHolder)
	if !ok || m.onTokenRefresh == nil {
		return
	}

	current, err := holder.CurrentToken()
	if err != nil || current == nil {
		return
	}

	m.mu.Lock()
	last := m.lastToken
	refreshed := last == nil || current.AccessToken != last.AccessToken || !current.Expiry.Equal(last.Expiry)
	if refreshed {
		m.lastToken = current
	}
	m.mu.Unlock()

	if refreshed && last != nil {
		m.logger.Info("oauth token refreshed", "user_id", m.userID)
		m.onTokenRefresh(current)
	}
}

package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"scriptony/models"
)

// OperationState is the lifecycle state of a world collection's mutating
// operation.
type OperationState string

const (
	StateIdle       OperationState = "idle"
	StateStarting   OperationState = "starting"
	StateProcessing OperationState = "processing"
	StateCompleted  OperationState = "completed"
	StateError      OperationState = "error"
)

const (
	// defaultCooldown is how long reloads stay suppressed after a delete
	// completes, so read-after-write lag on the backend can't flicker the
	// deleted world back into the list.
	defaultCooldown = 1500 * time.Millisecond

	// defaultIdleDelay is how long the state machine rests in
	// completed/error before returning to idle.
	defaultIdleDelay = 750 * time.Millisecond

	// defaultReloadGap rate-limits list refetches from rapid events.
	defaultReloadGap = 500 * time.Millisecond
)

// worldCollection is the per-user snapshot the state machines coordinate.
type worldCollection struct {
	mu              sync.Mutex
	worlds          []models.World
	loaded          bool
	selectedID      string
	state           OperationState
	opInFlight      bool
	lastCompletedAt time.Time
	lastLoadAt      time.Time
}

// WorldService coordinates world CRUD between the in-memory snapshot and
// the repository, with optimistic deletes, confirm-or-rollback semantics
// and cooldown-gated reload suppression.
type WorldService struct {
	repo   WorldRepository
	logger *slog.Logger

	cooldown  time.Duration
	idleDelay time.Duration
	reloadGap time.Duration

	mu          sync.Mutex
	collections map[string]*worldCollection
}

type WorldServiceOption func(*WorldService)

// WithTimings overrides the cooldown, idle delay and reload gap. The exact
// values are tunable product parameters; tests shrink them.
func WithTimings(cooldown, idleDelay, reloadGap time.Duration) WorldServiceOption {
	return func(ws *WorldService) {
		ws.cooldown = cooldown
		ws.idleDelay = idleDelay
		ws.reloadGap = reloadGap
	}
}

func NewWorldService(repo WorldRepository, logger *slog.Logger, opts ...WorldServiceOption) *WorldService {
	ws := &WorldService{
		repo:        repo,
		logger:      logger,
		cooldown:    defaultCooldown,
		idleDelay:   defaultIdleDelay,
		reloadGap:   defaultReloadGap,
		collections: make(map[string]*worldCollection),
	}
	for _, opt := range opts {
		opt(ws)
	}
	return ws
}

func (ws *WorldService) collection(userID string) *worldCollection {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	col, ok := ws.collections[userID]
	if !ok {
		col = &worldCollection{state: StateIdle}
		ws.collections[userID] = col
	}
	return col
}

// Load returns the user's worlds. Reloads are suppressed inside the
// post-delete cooldown window and rate-limited to one backend fetch per
// reload gap; suppressed calls serve the current snapshot. The cooldown
// applies even to a collection that was never fetched: the backend may
// still return the just-deleted row, and the snapshot already excludes it.
func (ws *WorldService) Load(ctx context.Context, userID string) ([]models.World, error) {
	col := ws.collection(userID)

	col.mu.Lock()
	now := time.Now()
	inCooldown := !col.lastCompletedAt.IsZero() && now.Sub(col.lastCompletedAt) < ws.cooldown
	rateLimited := col.loaded && now.Sub(col.lastLoadAt) < ws.reloadGap
	if inCooldown || rateLimited {
		snapshot := snapshotWorlds(col.worlds)
		col.mu.Unlock()
		return snapshot, nil
	}
	col.mu.Unlock()

	worlds, err := ws.repo.GetWorlds(userID)
	if err != nil {
		return nil, err
	}

	col.mu.Lock()
	col.worlds = worlds
	col.loaded = true
	col.lastLoadAt = time.Now()
	snapshot := snapshotWorlds(col.worlds)
	col.mu.Unlock()

	return snapshot, nil
}

// Create persists a new world and inserts it into the snapshot.
func (ws *WorldService) Create(ctx context.Context, world *models.World) (*models.World, error) {
	if err := ws.repo.CreateWorld(world); err != nil {
		return nil, err
	}

	col := ws.collection(world.UserID)
	col.mu.Lock()
	if col.loaded {
		col.worlds = append(col.worlds, *world)
	}
	col.mu.Unlock()

	return world, nil
}

// Update persists changes and patches the snapshot in place.
func (ws *WorldService) Update(ctx context.Context, userID, worldID, name string, categories json.RawMessage) error {
	existing, err := ws.repo.GetWorld(worldID)
	if err != nil {
		return err
	}
	if existing == nil || existing.UserID != userID {
		return ErrWorldNotFound
	}

	if err := ws.repo.UpdateWorld(worldID, name, categories); err != nil {
		return err
	}

	col := ws.collection(userID)
	col.mu.Lock()
	for i := range col.worlds {
		if col.worlds[i].ID == worldID {
			col.worlds[i].Name = name
			col.worlds[i].Categories = categories
			col.worlds[i].UpdatedAt = time.Now()
			break
		}
	}
	col.mu.Unlock()

	return nil
}

// Delete runs the optimistic deletion state machine:
//
//	idle -> starting -> processing -> {completed | error} -> idle
//
// The world leaves the snapshot (and the selection clears) before the
// backend confirms. Failure rolls back by refetching the authoritative
// list, never by re-inserting the cached item. A second delete while any
// operation is in flight returns ErrOperationInProgress.
func (ws *WorldService) Delete(ctx context.Context, userID, worldID string) error {
	existing, err := ws.repo.GetWorld(worldID)
	if err != nil {
		return err
	}
	if existing == nil || existing.UserID != userID {
		return ErrWorldNotFound
	}

	col := ws.collection(userID)

	// The explicit in-flight flag closes the race where two rapid calls
	// both read idle before either writes starting.
	col.mu.Lock()
	if col.opInFlight || col.state != StateIdle {
		col.mu.Unlock()
		return ErrOperationInProgress
	}
	col.opInFlight = true
	col.state = StateStarting

	// Optimistic removal
	kept := col.worlds[:0:0]
	for _, w := range col.worlds {
		if w.ID != worldID {
			kept = append(kept, w)
		}
	}
	col.worlds = kept
	if col.selectedID == worldID {
		col.selectedID = ""
	}
	col.state = StateProcessing
	col.mu.Unlock()

	err = ws.repo.DeleteWorld(worldID)

	col.mu.Lock()
	if err != nil {
		col.state = StateError
		col.mu.Unlock()

		ws.logger.Warn("world delete failed, resyncing list", "world_id", worldID, "error", err)
		ws.resync(userID, col)
		ws.scheduleIdle(col)
		return err
	}

	col.state = StateCompleted
	col.lastCompletedAt = time.Now()
	col.mu.Unlock()

	ws.scheduleIdle(col)
	return nil
}

// Duplicate waits for the backend's authoritative copy before touching the
// snapshot: the duplicate's ID cannot be predicted client-side, so there
// is nothing sound to insert optimistically. It shares the in-flight flag
// with Delete, so the two never overlap on a collection.
func (ws *WorldService) Duplicate(ctx context.Context, userID, worldID string) (*models.World, error) {
	source, err := ws.repo.GetWorld(worldID)
	if err != nil {
		return nil, err
	}
	if source == nil || source.UserID != userID {
		return nil, ErrWorldNotFound
	}

	col := ws.collection(userID)
	col.mu.Lock()
	if col.opInFlight || col.state != StateIdle {
		col.mu.Unlock()
		return nil, ErrOperationInProgress
	}
	col.opInFlight = true
	col.state = StateProcessing
	col.mu.Unlock()

	dup, err := ws.repo.DuplicateWorld(worldID)

	col.mu.Lock()
	if err != nil {
		col.state = StateError
		col.mu.Unlock()
		ws.scheduleIdle(col)
		return nil, err
	}

	if col.loaded {
		col.worlds = append(col.worlds, *dup)
	}
	col.state = StateCompleted
	col.mu.Unlock()

	ws.scheduleIdle(col)
	return dup, nil
}

// Select marks a world as the current selection.
func (ws *WorldService) Select(userID, worldID string) {
	col := ws.collection(userID)
	col.mu.Lock()
	col.selectedID = worldID
	col.mu.Unlock()
}

// Selected returns the current selection, empty when none.
func (ws *WorldService) Selected(userID string) string {
	col := ws.collection(userID)
	col.mu.Lock()
	defer col.mu.Unlock()
	return col.selectedID
}

// State exposes the collection's operation state for diagnostics.
func (ws *WorldService) State(userID string) OperationState {
	col := ws.collection(userID)
	col.mu.Lock()
	defer col.mu.Unlock()
	return col.state
}

// ExportSnapshot serializes the current world list for the auto-sync push.
func (ws *WorldService) ExportSnapshot(ctx context.Context, userID string) ([]byte, error) {
	worlds, err := ws.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(worlds, "", "  ")
}

// resync replaces the snapshot with the authoritative backend list.
func (ws *WorldService) resync(userID string, col *worldCollection) {
	worlds, err := ws.repo.GetWorlds(userID)
	if err != nil {
		ws.logger.Error("world list resync failed", "user_id", userID, "error", err)
		return
	}

	col.mu.Lock()
	col.worlds = worlds
	col.loaded = true
	col.lastLoadAt = time.Now()
	col.mu.Unlock()
}

// scheduleIdle returns the machine to idle after the rest delay,
// unconditionally clearing the in-flight flag so a new operation can start.
func (ws *WorldService) scheduleIdle(col *worldCollection) {
	time.AfterFunc(ws.idleDelay, func() {
		col.mu.Lock()
		col.state = StateIdle
		col.opInFlight = false
		col.mu.Unlock()
	})
}

func snapshotWorlds(worlds []models.World) []models.World {
	out := make([]models.World, len(worlds))
	copy(out, worlds)
	return out
}

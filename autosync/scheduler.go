// Package autosync runs the timer-driven background loop that periodically
// pushes current content to the active storage provider.
package autosync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"scriptony/storage"
)

const DefaultInterval = 5 * time.Minute

// SaveFunc persists one snapshot at a logical path.
type SaveFunc func(ctx context.Context, path string, content []byte) error

// Scheduler drives one auto-sync registration per provider instance.
// Registering again replaces the running timer; an old timer is never left
// running, since two timers would double-write the same path.
type Scheduler struct {
	save    SaveFunc
	onError func(err error)
	logger  *slog.Logger

	mu       sync.Mutex
	stopChan chan struct{}
	inFlight bool
}

func NewScheduler(save SaveFunc, onError func(err error), logger *slog.Logger) *Scheduler {
	return &Scheduler{
		save:    save,
		onError: onError,
		logger:  logger,
	}
}

// Register starts the periodic loop, cancelling any previous registration
// first. A zero interval uses the default.
func (s *Scheduler) Register(reg storage.AutoSyncRegistration) {
	if reg.Interval <= 0 {
		reg.Interval = DefaultInterval
	}

	s.mu.Lock()
	if s.stopChan != nil {
		close(s.stopChan)
	}
	stop := make(chan struct{})
	s.stopChan = stop
	s.mu.Unlock()

	go s.run(reg, stop)
}

// Stop cancels the running loop. Safe to call repeatedly and when no loop
// is running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopChan != nil {
		close(s.stopChan)
		s.stopChan = nil
	}
}

func (s *Scheduler) run(reg storage.AutoSyncRegistration, stop chan struct{}) {
	ticker := time.NewTicker(reg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(reg)
		case <-stop:
			return
		}
	}
}

// tick performs one sync attempt unless a previous one is still in flight;
// overlapping writes to the same path are skipped, not queued.
func (s *Scheduler) tick(reg storage.AutoSyncRegistration) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		s.logger.Debug("auto-sync tick skipped, previous sync still running")
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	ctx := context.Background()

	content, err := reg.GetContent(ctx)
	if err != nil {
		s.fail(err)
		return
	}

	path := reg.GetPath()
	if err := s.save(ctx, path, content); err != nil {
		s.fail(err)
		return
	}

	s.logger.Debug("auto-sync completed", "path", path, "bytes", len(content))
}

// fail records the error but never stops the loop; the next tick still fires
func (s *Scheduler) fail(err error) {
	s.logger.Warn("auto-sync attempt failed", "error", err)
	if s.onError != nil {
		s.onError(err)
	}
}

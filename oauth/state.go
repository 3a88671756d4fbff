package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

const stateTTL = 10 * time.Minute

type stateEntry struct {
	kind        RedirectKind
	originalURL string
	issuedAt    time.Time
}

// StateStore issues and verifies anti-CSRF nonces for the redirect flow.
// Each nonce is single-use: verification consumes it, so a replayed
// callback fails the state check rather than the code exchange.
type StateStore struct {
	mu     sync.Mutex
	states map[string]stateEntry
}

func NewStateStore() *StateStore {
	return &StateStore{
		states: make(map[string]stateEntry),
	}
}

// Issue creates a new nonce bound to a redirect kind. originalURL, when
// non-empty, is the page the user started from and is returned by Consume
// so the flow can land back there.
func (s *StateStore) Issue(kind RedirectKind, originalURL string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[state] = stateEntry{
		kind:        kind,
		originalURL: originalURL,
		issuedAt:    time.Now(),
	}
	return state, nil
}

// Consume validates a nonce against the expected kind and removes it.
// Returns the stashed original URL and whether the nonce was valid.
func (s *StateStore) Consume(state string, kind RedirectKind) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.states[state]
	if !ok {
		return "", false
	}
	delete(s.states, state)

	if entry.kind != kind || time.Since(entry.issuedAt) > stateTTL {
		return "", false
	}
	return entry.originalURL, true
}

// Cleanup drops expired nonces; called from the session cleanup routine
func (s *StateStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for state, entry := range s.states {
		if time.Since(entry.issuedAt) > stateTTL {
			delete(s.states, state)
		}
	}
}

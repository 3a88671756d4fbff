package oauth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/oauth2"
)

var (
	// ErrStateMismatch means the state nonce failed verification: either a
	// forged request or a stale/replayed callback. Reported distinctly from
	// exchange failures so diagnostics aren't misleading.
	ErrStateMismatch = errors.New("oauth state mismatch")

	// ErrCodeAlreadyProcessed means this authorization code was already
	// exchanged (or an exchange is in flight). Codes are single-use; a
	// second attempt would fail at Google and must not be surfaced as a
	// fresh login failure.
	ErrCodeAlreadyProcessed = errors.New("authorization code already processed")

	// ErrRedirectURIMismatch wraps the provider's redirect_uri_mismatch
	// error; the raw message is preserved for operator diagnostics.
	ErrRedirectURIMismatch = errors.New("redirect URI mismatch")
)

// Exchanger performs the server-side authorization-code exchange. The
// concrete implementation holds the client secret; tests substitute a fake.
type Exchanger interface {
	Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error)
}

// CallbackResult reports the outcome of processing one OAuth redirect.
type CallbackResult struct {
	Token       *oauth2.Token
	ReturnURL   string
	AlreadyDone bool
}

// Processor handles authorization-code callbacks exactly once per code.
type Processor struct {
	states    *StateStore
	exchanger Exchanger

	mu        sync.Mutex
	processed map[string]struct{}
	inFlight  map[string]struct{}
}

func NewProcessor(states *StateStore, exchanger Exchanger) *Processor {
	return &Processor{
		states:    states,
		exchanger: exchanger,
		processed: make(map[string]struct{}),
		inFlight:  make(map[string]struct{}),
	}
}

// Process verifies the state nonce, exchanges the code, and invokes
// onSuccess with the token set before returning. The exchange happens at
// most once per code regardless of how many times Process is invoked;
// replays get ErrCodeAlreadyProcessed. A missing code is a no-op.
func (p *Processor) Process(ctx context.Context, code, state string, kind RedirectKind, redirectURI string, onSuccess func(ctx context.Context, token *oauth2.Token) error) (*CallbackResult, error) {
	if code == "" {
		return &CallbackResult{}, nil
	}

	if err := p.claim(code); err != nil {
		return &CallbackResult{AlreadyDone: true}, err
	}

	returnURL, ok := p.states.Consume(state, kind)
	if !ok {
		p.finish(code)
		return nil, ErrStateMismatch
	}

	token, err := p.exchanger.Exchange(ctx, code, redirectURI)
	if err != nil {
		p.finish(code)
		if strings.Contains(err.Error(), "redirect_uri_mismatch") {
			// Surface the raw provider message: this needs console-side fixing
			return nil, errors.Join(ErrRedirectURIMismatch, err)
		}
		return nil, err
	}

	if onSuccess != nil {
		if err := onSuccess(ctx, token); err != nil {
			p.finish(code)
			return nil, err
		}
	}

	p.finish(code)
	return &CallbackResult{Token: token, ReturnURL: returnURL}, nil
}

// claim marks a code as in flight; codes already claimed or already
// exchanged are rejected. finish moves an in-flight code to processed.
func (p *Processor) claim(code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, done := p.processed[code]; done {
		return ErrCodeAlreadyProcessed
	}
	if _, busy := p.inFlight[code]; busy {
		return ErrCodeAlreadyProcessed
	}
	p.inFlight[code] = struct{}{}
	return nil
}

func (p *Processor) finish(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.inFlight, code)
	p.processed[code] = struct{}{}
}

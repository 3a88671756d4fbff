package oauth

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestClassifier() *Classifier {
	return NewClassifier(".lovableproject.com", "scriptony.app")
}

func TestClassify(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name string
		host string
		want Environment
	}{
		{"localhost", "localhost", EnvLocal},
		{"localhost with port", "localhost:3000", EnvLocal},
		{"loopback", "127.0.0.1:8080", EnvLocal},
		{"ipv6 loopback", "[::1]:3000", EnvLocal},
		{"preview", "abc123.lovableproject.com", EnvPreview},
		{"production", "scriptony.app", EnvProduction},
		{"production subdomain", "www.scriptony.app", EnvProduction},
		{"unknown host falls back to preview", "staging.example.com", EnvPreview},
		{"case insensitive", "SCRIPTONY.APP", EnvProduction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.host))
		})
	}
}

func TestComputeRedirectURI(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name string
		kind RedirectKind
		host string
		want string
	}{
		{"local auth uses http", KindAuth, "localhost:3000", "http://localhost:3000/auth/google/callback"},
		{"local drive uses http", KindDrive, "localhost:3000", "http://localhost:3000/auth/google/drive/callback"},
		{"production auth uses https", KindAuth, "scriptony.app", "https://scriptony.app/auth/google/callback"},
		{"production drive uses https", KindDrive, "scriptony.app", "https://scriptony.app/auth/google/drive/callback"},
		{"preview drive uses https", KindDrive, "abc123.lovableproject.com", "https://abc123.lovableproject.com/auth/google/drive/callback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ComputeRedirectURI(tt.kind, tt.host))
		})
	}
}

func TestComputeRedirectURIIsStable(t *testing.T) {
	c := newTestClassifier()

	// The URI depends only on host and kind, never on request state:
	// repeated computation must be byte-identical to match the console
	// registration
	first := c.ComputeRedirectURI(KindDrive, "scriptony.app")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.ComputeRedirectURI(KindDrive, "scriptony.app"))
	}
}

func TestHasPendingCallback(t *testing.T) {
	assert.True(t, HasPendingCallback(url.Values{"code": {"abc"}, "state": {"xyz"}}))
	assert.False(t, HasPendingCallback(url.Values{"code": {"abc"}}))
	assert.False(t, HasPendingCallback(url.Values{"state": {"xyz"}}))
	assert.False(t, HasPendingCallback(url.Values{}))
}

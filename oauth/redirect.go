package oauth

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Environment classifies where the service is running, derived from the
// request host. Redirect URIs must match the OAuth console registration
// byte for byte, so the classification is pure and deterministic.
type Environment string

const (
	EnvLocal      Environment = "local"
	EnvPreview    Environment = "preview"
	EnvProduction Environment = "production"
)

// RedirectKind selects which registered redirect URI to compute.
type RedirectKind string

const (
	// KindAuth is the sign-in callback
	KindAuth RedirectKind = "auth"
	// KindDrive is the Drive storage-connection callback
	KindDrive RedirectKind = "drive"
)

const (
	authCallbackPath  = "/auth/google/callback"
	driveCallbackPath = "/auth/google/drive/callback"
)

// Classifier maps hostnames to environments.
type Classifier struct {
	previewSuffix  string
	productionHost string
}

func NewClassifier(previewSuffix, productionHost string) *Classifier {
	return &Classifier{
		previewSuffix:  previewSuffix,
		productionHost: productionHost,
	}
}

// Classify determines the environment for a host (with or without port).
func (c *Classifier) Classify(host string) Environment {
	hostname := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostname = h
	}
	hostname = strings.ToLower(hostname)

	switch {
	case hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1":
		return EnvLocal
	case c.previewSuffix != "" && strings.HasSuffix(hostname, c.previewSuffix):
		return EnvPreview
	case hostname == c.productionHost || strings.HasSuffix(hostname, "."+c.productionHost):
		return EnvProduction
	default:
		// Unknown hosts are treated as preview deployments
		return EnvPreview
	}
}

// ComputeRedirectURI builds the redirect URI for a kind from the request
// host. The result depends only on scheme, hostname and port: query
// parameters on the current URL never leak into it.
func (c *Classifier) ComputeRedirectURI(kind RedirectKind, host string) string {
	scheme := "https"
	if c.Classify(host) == EnvLocal {
		scheme = "http"
	}

	path := authCallbackPath
	if kind == KindDrive {
		path = driveCallbackPath
	}

	return fmt.Sprintf("%s://%s%s", scheme, host, path)
}

// HasPendingCallback reports whether a request's query string carries a
// completed OAuth redirect: both code and state must be present.
func HasPendingCallback(query url.Values) bool {
	return query.Get("code") != "" && query.Get("state") != ""
}

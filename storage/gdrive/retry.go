package gdrive

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
)

const (
	readAttempts = 3
	retryBaseWait = 200 * time.Millisecond
)

// withRetry runs an idempotent read with bounded backoff. Writes never go
// through here: a retried create-if-missing lookup risks duplicates.
func withRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	wait := retryBaseWait

	for attempt := 0; attempt < readAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
			wait *= 2
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return zero, err
		}
	}

	return zero, lastErr
}

// isRetryable covers transient network failures and 5xx responses.
// Authorization failures are excluded: those need a new OAuth flow, not a
// retry loop.
func isRetryable(err error) bool {
	if isAuthError(err) {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500 || apiErr.Code == 429
	}

	// DNS / connection errors come through as plain url errors
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// isAuthError classifies expired or revoked credentials.
func isAuthError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 401 || apiErr.Code == 403
	}

	msg := err.Error()
	return strings.Contains(msg, "invalid_grant") ||
		strings.Contains(msg, "token expired") ||
		strings.Contains(msg, "Token has been expired")
}

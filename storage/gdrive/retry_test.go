package gdrive

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestWithRetryRecoversFromTransientFailures(t *testing.T) {
	calls := 0
	result, err := withRetry(context.Background(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", &googleapi.Error{Code: 503}
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestWithRetryGivesUpAfterAttempts(t *testing.T) {
	calls := 0
	transient := &googleapi.Error{Code: 500}
	_, err := withRetry(context.Background(), func() (string, error) {
		calls++
		return "", transient
	})

	assert.ErrorIs(t, err, transient)
	assert.Equal(t, readAttempts, calls)
}

func TestWithRetryStopsOnAuthError(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), func() (string, error) {
		calls++
		return "", &googleapi.Error{Code: 401}
	})

	assert.Error(t, err)
	// Auth failures need a new consent flow, not more attempts
	assert.Equal(t, 1, calls)
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		cancel()
	}()

	_, err := withRetry(ctx, func() (string, error) {
		calls++
		cancel()
		return "", &googleapi.Error{Code: 500}
	})

	assert.Error(t, err)
	assert.LessOrEqual(t, calls, 2)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&googleapi.Error{Code: 500}))
	assert.True(t, isRetryable(&googleapi.Error{Code: 429}))
	assert.True(t, isRetryable(errors.New("connection reset by peer")))

	assert.False(t, isRetryable(&googleapi.Error{Code: 404}))
	assert.False(t, isRetryable(&googleapi.Error{Code: 401}))
	assert.False(t, isRetryable(&googleapi.Error{Code: 403}))
	assert.False(t, isRetryable(context.Canceled))
	assert.False(t, isRetryable(context.DeadlineExceeded))
}

func TestIsAuthError(t *testing.T) {
	assert.True(t, isAuthError(&googleapi.Error{Code: 401}))
	assert.True(t, isAuthError(&googleapi.Error{Code: 403}))
	assert.True(t, isAuthError(errors.New(`oauth2: "invalid_grant"`)))
	assert.True(t, isAuthError(errors.New("Token has been expired or revoked")))

	assert.False(t, isAuthError(nil))
	assert.False(t, isAuthError(&googleapi.Error{Code: 500}))
	assert.False(t, isAuthError(errors.New("network unreachable")))
}

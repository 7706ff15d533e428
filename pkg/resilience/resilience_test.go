package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRemote = errors.New("remote failure")
var errRejected = errors.New("rejected")

func TestRetry_StopsOnSuccess(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = 3
	cfg.InitialDelay = time.Millisecond

	calls := 0
	v, err := Retry(context.Background(), cfg, func() (int, error) {
		calls++
		if calls < 2 {
			return 0, errRemote
		}
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, calls)
}

func TestRetry_ShouldRetryRejects(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = 5
	cfg.InitialDelay = time.Millisecond
	cfg.ShouldRetry = func(err error) bool { return !errors.Is(err, errRejected) }

	calls := 0
	_, err := Retry(context.Background(), cfg, func() (string, error) {
		calls++
		return "", errRejected
	})

	assert.ErrorIs(t, err, errRejected)
	assert.Equal(t, 1, calls)
}

func TestRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Retry(ctx, DefaultRetryConfig(), func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("test-open")
	cfg.MinRequests = 2
	cb := NewCircuitBreaker(cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := Execute(ctx, cb, func(context.Context) (int, error) { return 0, errRemote })
		assert.ErrorIs(t, err, errRemote)
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())
	_, err := Execute(ctx, cb, func(context.Context) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_IsSuccessfulKeepsClosed(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("test-closed")
	cfg.MinRequests = 1
	cfg.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, errRejected) }
	cb := NewCircuitBreaker(cfg)

	for i := 0; i < 3; i++ {
		_, err := Execute(context.Background(), cb, func(context.Context) (int, error) { return 0, errRejected })
		assert.ErrorIs(t, err, errRejected)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, "test-closed", cb.Name())
}

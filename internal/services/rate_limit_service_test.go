package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func newTestCounter() (*MemoryCounter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	counter := NewMemoryCounter()
	counter.now = clock.now
	return counter, clock
}

type failingCounter struct{}

func (failingCounter) Hit(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("connection refused")
}

func TestRateLimit_AllowsUpToLimit(t *testing.T) {
	counter, _ := newTestCounter()
	service := NewRateLimitService(counter, 3, time.Minute, quietLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, service.Check(ctx, "ip", "10.0.0.1"))
	}

	err := service.Check(ctx, "ip", "10.0.0.1")
	require.Error(t, err)

	var rlErr *RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, "ip", rlErr.Type)
	assert.True(t, rlErr.RetryAfter.After(time.Now()))
}

func TestRateLimit_KeysAreIndependent(t *testing.T) {
	counter, _ := newTestCounter()
	service := NewRateLimitService(counter, 1, time.Minute, quietLogger())
	ctx := context.Background()

	require.NoError(t, service.Check(ctx, "ip", "10.0.0.1"))
	require.NoError(t, service.Check(ctx, "ip", "10.0.0.2"))
	require.NoError(t, service.Check(ctx, "user", "10.0.0.1"))
	assert.Error(t, service.Check(ctx, "ip", "10.0.0.1"))
}

func TestRateLimit_WindowResets(t *testing.T) {
	counter, clock := newTestCounter()
	service := NewRateLimitService(counter, 1, time.Minute, quietLogger())
	ctx := context.Background()

	require.NoError(t, service.Check(ctx, "ip", "10.0.0.1"))
	assert.Error(t, service.Check(ctx, "ip", "10.0.0.1"))

	clock.t = clock.t.Add(time.Minute)
	assert.NoError(t, service.Check(ctx, "ip", "10.0.0.1"))
}

func TestRateLimit_CounterFailureFailsOpen(t *testing.T) {
	service := NewRateLimitService(failingCounter{}, 1, time.Minute, quietLogger())

	assert.NoError(t, service.Check(context.Background(), "ip", "10.0.0.1"))
	assert.NoError(t, service.Check(context.Background(), "ip", "10.0.0.1"))
}

func TestRateLimit_Disabled(t *testing.T) {
	var service *RateLimitService
	assert.NoError(t, service.Check(context.Background(), "ip", "10.0.0.1"))

	counter, _ := newTestCounter()
	service = NewRateLimitService(counter, 0, time.Minute, quietLogger())
	for i := 0; i < 10; i++ {
		assert.NoError(t, service.Check(context.Background(), "ip", "10.0.0.1"))
	}
}

func TestMemoryCounter_Cleanup(t *testing.T) {
	counter, clock := newTestCounter()
	ctx := context.Background()

	_, _, _ = counter.Hit(ctx, "a", time.Minute)
	_, _, _ = counter.Hit(ctx, "b", time.Hour)

	clock.t = clock.t.Add(2 * time.Minute)
	assert.Equal(t, 1, counter.Cleanup())

	count, ttl, err := counter.Hit(ctx, "b", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, 58*time.Minute, ttl)
}

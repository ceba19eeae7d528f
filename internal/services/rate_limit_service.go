package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
	Type       string // "ip" or "user"
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// RateLimitCounter counts hits per key inside a fixed window
type RateLimitCounter interface {
	// Hit increments key and returns the new count and the time left in
	// the key's window
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimitService enforces a fixed-window request limit per identifier
type RateLimitService struct {
	counter RateLimitCounter
	limit   int
	window  time.Duration
	logger  *logrus.Logger
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(counter RateLimitCounter, limit int, window time.Duration, logger *logrus.Logger) *RateLimitService {
	return &RateLimitService{
		counter: counter,
		limit:   limit,
		window:  window,
		logger:  logger,
	}
}

// Check records a request from identifier and returns a *RateLimitError
// once the limit for the current window is exceeded. Counter failures
// let the request through.
func (s *RateLimitService) Check(ctx context.Context, identifierType, identifier string) error {
	if s == nil || s.limit <= 0 || identifier == "" {
		return nil
	}

	count, ttl, err := s.counter.Hit(ctx, "ratelimit:"+identifierType+":"+identifier, s.window)
	if err != nil {
		s.logger.WithError(err).WithField("type", identifierType).Warn("Rate limit counter unavailable")
		return nil
	}

	if count > int64(s.limit) {
		if ttl <= 0 {
			ttl = s.window
		}
		retryAfter := time.Now().Add(ttl)
		return &RateLimitError{
			Message:    fmt.Sprintf("Too many requests. Please try again after %s", retryAfter.Format("15:04:05")),
			RetryAfter: retryAfter,
			Type:       identifierType,
		}
	}
	return nil
}

// RedisCounter keeps window counters in redis so limits hold across
// instances
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter creates a redis-backed counter
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

// Hit implements RateLimitCounter
func (c *RedisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}
	if count == 1 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("failed to set expiry on %s: %w", key, err)
		}
		return count, window, nil
	}

	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read ttl of %s: %w", key, err)
	}
	// A key left without expiry by a failed EXPIRE would never reset
	if ttl < 0 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("failed to set expiry on %s: %w", key, err)
		}
		ttl = window
	}
	return count, ttl, nil
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryCounter is a single-process counter used when redis is not
// configured
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

// NewMemoryCounter creates an in-process counter
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		windows: make(map[string]*memoryWindow),
		now:     time.Now,
	}
}

// Hit implements RateLimitCounter
func (c *MemoryCounter) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		c.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt.Sub(now), nil
}

// Cleanup drops expired windows and returns how many were removed
func (c *MemoryCounter) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, w := range c.windows {
		if !now.Before(w.resetAt) {
			delete(c.windows, key)
			removed++
		}
	}
	return removed
}

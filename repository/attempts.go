package repository

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	insurance "github.com/goliatone/go-insurance"
)

// RedisAttempts counts failed logins in redis. Each key expires one window
// after its first failure.
type RedisAttempts struct {
	c *redis.Client
}

var _ insurance.AttemptStore = (*RedisAttempts)(nil)

func NewRedisAttempts(c *redis.Client) *RedisAttempts { return &RedisAttempts{c: c} }

func (r *RedisAttempts) Count(ctx context.Context, key string) (int, error) {
	val, err := r.c.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return strconv.Atoi(val)
}

func (r *RedisAttempts) Incr(ctx context.Context, key string, window time.Duration) (int, error) {
	n, err := r.c.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := r.c.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return int(n), nil
}

func (r *RedisAttempts) Reset(ctx context.Context, key string) error {
	return r.c.Del(ctx, key).Err()
}

// MemoryAttempts is the in process fallback used when no redis address is
// configured
type MemoryAttempts struct {
	mu      sync.Mutex
	now     insurance.Clock
	entries map[string]attemptEntry
}

type attemptEntry struct {
	count   int
	expires time.Time
}

var _ insurance.AttemptStore = (*MemoryAttempts)(nil)

func NewMemoryAttempts(now insurance.Clock) *MemoryAttempts {
	if now == nil {
		now = time.Now
	}
	return &MemoryAttempts{now: now, entries: make(map[string]attemptEntry)}
}

func (m *MemoryAttempts) Count(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live(key).count, nil
}

func (m *MemoryAttempts) Incr(_ context.Context, key string, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(key)
	if e.count == 0 {
		e.expires = m.now().Add(window)
	}
	e.count++
	m.entries[key] = e
	return e.count, nil
}

func (m *MemoryAttempts) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryAttempts) live(key string) attemptEntry {
	e, ok := m.entries[key]
	if !ok {
		return attemptEntry{}
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return attemptEntry{}
	}
	return e
}

// Package lock provides short-lived named locks backed by Redis, with an
// in-process fallback when Redis is not configured.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Locker acquires named locks with an expiry.
type Locker interface {
	// Acquire returns ok=false when the key is already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// New returns a Redis locker, or an in-process one when client is nil.
func New(client *redis.Client, prefix string) Locker {
	if client == nil {
		return NewMemoryLocker()
	}
	return &RedisLocker{client: client, prefix: prefix}
}

// RedisLocker implements Locker with SET NX PX and a token-checked release.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil && err != redis.Nil {
			log.Warn().Err(err).Str("key", fullKey).Msg("Failed to release lock")
		}
	}
	return release, true, nil
}

// MemoryLocker is a single-process Locker.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]heldLock
	now  func() time.Time
}

type heldLock struct {
	token   string
	expires time.Time
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]heldLock), now: time.Now}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if h, ok := l.held[key]; ok && now.Before(h.expires) {
		return nil, false, nil
	}

	token := uuid.NewString()
	l.held[key] = heldLock{token: token, expires: now.Add(ttl)}

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if h, ok := l.held[key]; ok && h.token == token {
			delete(l.held, key)
		}
	}
	return release, true, nil
}

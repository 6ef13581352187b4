package redisstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockTTL bounds how long a crashed holder can block the next run.
const DefaultLockTTL = 30 * time.Minute

// releaseScript deletes the lock only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock is an application.RunLock shared by every process pointing at
// the same Redis. Acquisition is SET NX PX with a per-acquisition token.
type RunLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

// NewRunLock creates a lock on key. A non-positive ttl uses DefaultLockTTL.
func NewRunLock(client *redis.Client, key string, ttl time.Duration) *RunLock {
	if key == "" {
		key = "billora:renewal_run"
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RunLock{client: client, key: key, ttl: ttl}
}

func (l *RunLock) TryAcquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return false, nil
	}
	l.mu.Lock()
	l.token = token
	l.mu.Unlock()
	return true, nil
}

func (l *RunLock) Release(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()
	if token == "" {
		return nil
	}

	err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}

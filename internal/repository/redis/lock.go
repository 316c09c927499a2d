package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Harsh-BH/codepad/internal/repository"
)

var _ repository.ExecutionLock = (*redisLock)(nil)

const (
	lockKeyPrefix = "codepad:exec:lock:"

	// DefaultLockTTL bounds how long a crashed holder can keep a document locked.
	// It must exceed the worst-case execution (compile + run + judge polling).
	DefaultLockTTL = 2 * time.Minute
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type redisLock struct {
	client *goredis.Client
	ttl    time.Duration

	mu     sync.Mutex
	tokens map[uuid.UUID]string
}

// NewRedisExecutionLock creates a Redis-backed execution lock using SET NX.
// It serializes executions of one document across processes sharing a workspace.
func NewRedisExecutionLock(client *goredis.Client, ttl time.Duration) repository.ExecutionLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &redisLock{
		client: client,
		ttl:    ttl,
		tokens: make(map[uuid.UUID]string),
	}
}

// AcquireLock uses Redis SETNX to atomically take the document lock.
func (r *redisLock) AcquireLock(ctx context.Context, documentID uuid.UUID) (bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, lockKeyPrefix+documentID.String(), token, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire lock: %w", err)
	}
	if !ok {
		return false, nil
	}

	r.mu.Lock()
	r.tokens[documentID] = token
	r.mu.Unlock()
	return true, nil
}

// ReleaseLock deletes the lock key if this process still owns it.
func (r *redisLock) ReleaseLock(ctx context.Context, documentID uuid.UUID) error {
	r.mu.Lock()
	token, ok := r.tokens[documentID]
	delete(r.tokens, documentID)
	r.mu.Unlock()

	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, r.client, []string{lockKeyPrefix + documentID.String()}, token).Err(); err != nil {
		return fmt.Errorf("redis: release lock: %w", err)
	}
	return nil
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// LockTTL bounds how long a crashed holder can block others.
	LockTTL          = 30 * time.Second
	lockPollInterval = 50 * time.Millisecond
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock acquires a distributed lock on key with SET NX PX, polling until it is
// free or ctx is done. The returned func releases it and may be called more than once.
func (c *Cache) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := c.key("lock:" + key)
	token := uuid.NewString()

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()
	for {
		err := c.Client.SetArgs(ctx, redisKey, token, redis.SetArgs{Mode: "NX", TTL: LockTTL}).Err()
		if err == nil {
			break
		}
		if !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release even when the caller's context is already cancelled.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, c.Client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				slog.Warn("failed to release lock", "key", key, "error", err)
			}
		})
	}, nil
}

package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PollLockKey is the Redis key holding the poll lease.
const PollLockKey = "regwatch:poll:lease"

// PollLock is a lease that keeps overlapping cron triggers from polling at once.
type PollLock interface {
	// Acquire returns acquired=false when another poll holds the lease.
	// release must be called when acquired is true.
	Acquire(ctx context.Context) (release func(), acquired bool, err error)
}

// releaseScript deletes the lease only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisPollLock struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewPollLock returns a Redis-backed lease, or a lease that always succeeds
// when client is nil.
func NewPollLock(client *redis.Client, ttl time.Duration, logger *zap.Logger) PollLock {
	if client == nil {
		return noopPollLock{}
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &redisPollLock{client: client, ttl: ttl, logger: logger.Named("poll-lock")}
}

func (l *redisPollLock) Acquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, PollLockKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		if err := releaseScript.Run(context.Background(), l.client, []string{PollLockKey}, token).Err(); err != nil {
			l.logger.Warn("Failed to release poll lease", zap.Error(err))
		}
	}
	return release, true, nil
}

type noopPollLock struct{}

func (noopPollLock) Acquire(context.Context) (func(), bool, error) {
	return func() {}, true, nil
}

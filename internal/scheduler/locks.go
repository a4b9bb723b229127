package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned by a Locker when another worker owns the key.
var ErrLockHeld = errors.New("lock held by another worker")

// Locker serializes work on a key across replicas.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// RedisLocker is a Locker backed by redislock.
type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(rdb redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb)}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

// noopLocker is used when no Redis is configured; a single replica is assumed.
type noopLocker struct{}

func (noopLocker) Obtain(context.Context, string, time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

func releaseLockKey(entityID, batchType string) string {
	return "disbursement:release:" + entityID + ":" + batchType
}

func reconcileLockKey(entityID string) string {
	return "disbursement:reconcile:" + entityID
}

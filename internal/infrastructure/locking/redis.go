package locking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/wms-platform/stockcount-service/internal/domain"
)

const defaultRetryInterval = 25 * time.Millisecond

// RedisLocker provides locks shared by every replica through Redis
type RedisLocker struct {
	client        *redislock.Client
	waitTimeout   time.Duration
	retryInterval time.Duration
}

// NewRedisLocker creates a locker on top of an existing redis client
func NewRedisLocker(rdb redis.UniversalClient, waitTimeout time.Duration) *RedisLocker {
	return &RedisLocker{
		client:        redislock.New(rdb),
		waitTimeout:   waitTimeout,
		retryInterval: defaultRetryInterval,
	}
}

// Lock obtains key for ttl, polling until the wait timeout elapses
func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (domain.Unlock, error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.waitTimeout)
	defer cancel()

	lock, err := l.client.Obtain(waitCtx, key, ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.retryInterval),
	})
	switch {
	case errors.Is(err, redislock.ErrNotObtained), errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: %s", domain.ErrLockNotAcquired, key)
	case err != nil:
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil {
			if errors.Is(err, redislock.ErrLockNotHeld) {
				return fmt.Errorf("lock %s expired before release", key)
			}
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		return nil
	}, nil
}

// NewRedisClient connects to redis and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

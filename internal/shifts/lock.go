package shifts

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/panaderia/internal/shared"
)

// CloseLocker fences concurrent closes of the same shift across processes.
type CloseLocker interface {
	Acquire(ctx context.Context, shiftID uuid.UUID) (release func(), err error)
}

// RedisCloseLocker implements CloseLocker with a short-lived Redis lock.
type RedisCloseLocker struct {
	locker *redislock.Client
	ttl    time.Duration
}

// NewRedisCloseLocker constructs a RedisCloseLocker.
func NewRedisCloseLocker(client *redis.Client, ttl time.Duration) *RedisCloseLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisCloseLocker{locker: redislock.New(client), ttl: ttl}
}

// Acquire obtains the close lock without waiting. A held lock yields ErrCloseInProgress.
func (l *RedisCloseLocker) Acquire(ctx context.Context, shiftID uuid.UUID) (func(), error) {
	lock, err := l.locker.Obtain(ctx, shared.ShiftCloseLockKey(shiftID), l.ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return func() {}, ErrCloseInProgress
		}
		return func() {}, err
	}
	return func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}, nil
}

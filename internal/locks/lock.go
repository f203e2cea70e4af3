// Package locks serializes load-mutate-save cycles on a ledger document, within
// one process and optionally across processes through Redis.
package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const (
	defaultLockTTL  = 10 * time.Second
	defaultLockWait = 3 * time.Second
)

// ErrNotAcquired is returned when another holder kept the lock past the wait.
var ErrNotAcquired = errors.New("lock held by another process")

// Lock coordinates exclusive access to one key.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Guard runs fn while holding the lock for key.
type Guard interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// redisStore defines the operations used by RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
}

// keyedStore adds the document lock key naming used by RedisGuard.
type keyedStore interface {
	redisStore
	LockKey(document string) string
}

// RedisLock implements Lock using Redis SETNX + TTL.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire tries once to own the lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release frees the lock only if the owner value still matches. The check
// and delete run as one script so an expired lock re-taken by another owner
// survives.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	owner := l.owner
	l.owner = ""
	if _, err := l.client.CompareAndDelete(ctx, l.key, owner); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// RedisGuard holds a RedisLock per call, polling with backoff until wait elapses.
type RedisGuard struct {
	client keyedStore
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisGuard builds a cross-process guard.
func NewRedisGuard(client keyedStore, ttl, wait time.Duration) (*RedisGuard, error) {
	if client == nil {
		return nil, errors.New("redis client required for guard")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &RedisGuard{client: client, ttl: ttl, wait: wait}, nil
}

// WithLock acquires the document lock, runs fn, and releases the lock. A
// release failure is joined to fn's error.
func (g *RedisGuard) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) (err error) {
	lock, err := NewRedisLock(g.client, g.client.LockKey(key), g.ttl)
	if err != nil {
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 25 * time.Millisecond
	policy.MaxInterval = 250 * time.Millisecond

	_, err = backoff.Retry(ctx, func() (bool, error) {
		ok, acquireErr := lock.Acquire(ctx)
		if acquireErr != nil {
			return false, backoff.Permanent(acquireErr)
		}
		if !ok {
			return false, ErrNotAcquired
		}
		return true, nil
	}, backoff.WithBackOff(policy), backoff.WithMaxElapsedTime(g.wait))
	if err != nil {
		return fmt.Errorf("acquire %s lock: %w", key, err)
	}

	defer func() {
		// Release must run even when ctx is already canceled.
		releaseCtx := context.WithoutCancel(ctx)
		err = multierr.Append(err, lock.Release(releaseCtx))
	}()
	return fn(ctx)
}

// Nop runs fn without cross-process coordination.
type Nop struct{}

func (Nop) WithLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

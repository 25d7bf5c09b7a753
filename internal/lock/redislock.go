package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock stays held past MaxWait.
var ErrNotAcquired = errors.New("lock: not acquired")

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`

// Locker serializes work per key across API replicas using SET NX with a
// random owner token. Callback deliveries for one purchase go through it.
type Locker struct {
	R            redis.UniversalClient
	RetryBackoff time.Duration
	// MaxWait bounds how long WithLock polls for a held key. Zero waits
	// until ctx is done.
	MaxWait time.Duration
}

// WithLock runs fn while holding key. The lock is released when fn returns,
// whatever its result; a lock whose holder died expires after ttl.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}

	token := uuid.NewString()
	if err := l.acquire(ctx, key, token, ttl, retry); err != nil {
		return err
	}
	defer l.release(key, token)
	return fn(ctx)
}

// acquire polls SET NX until it wins, ctx ends or MaxWait elapses. fn does
// not share the MaxWait budget.
func (l Locker) acquire(ctx context.Context, key, token string, ttl, retry time.Duration) error {
	if l.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.MaxWait)
		defer cancel()
	}
	for {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %s", ErrNotAcquired, key)
			}
			return fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return nil
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %s", ErrNotAcquired, key)
		case <-timer.C:
		}
	}
}

func (l Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.R.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			if current, getErr := l.R.Get(ctx, key).Result(); getErr == nil && current == token {
				_ = l.R.Del(ctx, key).Err()
			}
		}
	}
}

package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Backend names accepted by New.
const (
	BackendSliding = "sliding"
	BackendUlule   = "ulule"
	BackendOff     = "off"
)

// StoreLimiter adapts a ulule limiter store to Allower. The store counts in
// fixed windows.
type StoreLimiter struct {
	Store limiter.Store
}

// Allow increments the counter for key under a rate of max per window.
func (s StoreLimiter) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if s.Store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	res, err := s.Store.Get(ctx, key, limiter.Rate{Period: window, Limit: int64(max)})
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}

// NewLimiterStore wires a ulule store backed by Redis.
func NewLimiterStore(rdb *redis.Client, prefix string) (limiter.Store, error) {
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix})
}

// New returns the Allower for backend. BackendOff yields nil, which
// Handler treats as no limit.
func New(backend string, rdb *redis.Client, prefix string) (Allower, error) {
	switch backend {
	case BackendSliding, "":
		return Limiter{Client: rdb, Prefix: prefix}, nil
	case BackendUlule:
		store, err := NewLimiterStore(rdb, prefix)
		if err != nil {
			return nil, fmt.Errorf("ulule store: %w", err)
		}
		return StoreLimiter{Store: store}, nil
	case BackendOff:
		return nil, nil
	default:
		return nil, fmt.Errorf("ratelimit: unknown backend %q", backend)
	}
}

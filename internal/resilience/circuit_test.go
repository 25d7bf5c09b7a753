package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/payment-kingcard/internal/resilience"
)

func TestBreakerTransitions(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	breaker := resilience.NewBreaker(2, 0.5, 50*time.Millisecond).WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)

	require.False(t, breaker.Allow(ctx), "breaker should open after threshold exceeded")
	require.Equal(t, resilience.Open, breaker.State())

	now = now.Add(60 * time.Millisecond)
	require.True(t, breaker.Allow(ctx), "breaker should move to half-open after cool off")
	require.Equal(t, resilience.HalfOpen, breaker.State())
	breaker.Report(ctx, true)
	require.True(t, breaker.Allow(ctx), "breaker should close after successful probe")
	require.Equal(t, resilience.Closed, breaker.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	breaker := resilience.NewBreaker(1, 0.5, time.Second).WithClock(func() time.Time { return now })
	ctx := context.Background()

	breaker.Report(ctx, false)
	require.Equal(t, resilience.Open, breaker.State())

	now = now.Add(2 * time.Second)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.Equal(t, resilience.Open, breaker.State())
	require.False(t, breaker.Allow(ctx))
}

func TestBreakerMetricsTransitions(t *testing.T) {
	resilience.BreakerState.Reset()
	resilience.BreakerTransitions.Reset()
	resilience.BreakerOpenedTotal.Reset()

	now := time.Unix(1_700_000_000, 0)
	breaker := resilience.NewBreaker(1, 0.5, 20*time.Millisecond).
		WithTarget("kingcard").
		WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("kingcard")))

	now = now.Add(25 * time.Millisecond)
	require.True(t, breaker.Allow(ctx))
	require.Equal(t, 2.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("kingcard")))

	breaker.Report(ctx, true)
	require.Equal(t, 0.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("kingcard")))

	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerOpenedTotal.WithLabelValues("kingcard")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("kingcard", "closed", "open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("kingcard", "open", "half_open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("kingcard", "half_open", "closed")))
}

package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	limiter "github.com/ulule/limiter/v3"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestHandlerMiddlewareEnforcesLimit(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	handler := Handler{
		Limiter: Limiter{Client: client, Prefix: "ratelimit:"},
		Config: Config{
			Key:    func(*http.Request) string { return "static" },
			Window: time.Second,
			Max:    1,
		},
	}
	counted := handler.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/kingcard/req-1", nil)
	rr1 := httptest.NewRecorder()
	counted.ServeHTTP(rr1, req.Clone(req.Context()))
	require.Equal(t, http.StatusOK, rr1.Code)

	rr2 := httptest.NewRecorder()
	counted.ServeHTTP(rr2, req.Clone(req.Context()))
	require.Equal(t, http.StatusTooManyRequests, rr2.Code)
	require.Equal(t, "1", rr2.Header().Get("X-RateLimit-Limit"))
	require.NotEmpty(t, rr2.Header().Get("Retry-After"))

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr2.Body.Bytes(), &body))
	require.Equal(t, "RATE_LIMITED", body.Error.Code)
}

func TestHandlerMiddlewareOnError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer func() { _ = client.Close() }()

	called := false
	handler := Handler{
		Limiter: Limiter{Client: client, Prefix: "ratelimit:"},
		Config: Config{
			Key:    func(*http.Request) string { return "err" },
			Window: time.Second,
			Max:    1,
		},
		OnError: func(error) { called = true },
	}

	rr := httptest.NewRecorder()
	handler.Middleware(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, called)
}

func TestHandlerMiddlewareWithoutLimiterPassesThrough(t *testing.T) {
	handler := Handler{Config: Config{Key: SubmissionKey, Window: time.Second, Max: 1}}
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		handler.Middleware(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestStoreLimiterFixedWindow(t *testing.T) {
	store := memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: "test", CleanUpInterval: time.Minute})
	l := StoreLimiter{Store: store}
	ctx := context.Background()

	allowed, remaining, reset, err := l.Allow(ctx, "ip", time.Minute, 2)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 1, remaining)
	require.True(t, reset.After(time.Now()))

	allowed, remaining, _, err = l.Allow(ctx, "ip", time.Minute, 2)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Zero(t, remaining)

	allowed, _, _, err = l.Allow(ctx, "ip", time.Minute, 2)
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, _, _, err = l.Allow(ctx, "other-ip", time.Minute, 2)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestNewSelectsBackend(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	sliding, err := New(BackendSliding, client, "rl:")
	require.NoError(t, err)
	require.IsType(t, Limiter{}, sliding)

	off, err := New(BackendOff, client, "rl:")
	require.NoError(t, err)
	require.Nil(t, off)

	_, err = New("memcached", client, "rl:")
	require.Error(t, err)
}

func TestSubmissionKey(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Post("/api/v1/payments/kingcard/{requestKey}", func(w http.ResponseWriter, req *http.Request) {
		got = SubmissionKey(req)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/kingcard/req-9", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	r.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "submit:203.0.113.7:req-9", got)
}

func TestSubmissionKeyIgnoresForwardedHeaders(t *testing.T) {
	var keys []string
	r := chi.NewRouter()
	r.Post("/api/v1/payments/kingcard/{requestKey}", func(w http.ResponseWriter, req *http.Request) {
		keys = append(keys, SubmissionKey(req))
	})

	for _, forwarded := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/kingcard/req-9", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		req.Header.Set("X-Forwarded-For", forwarded)
		req.Header.Set("X-Real-IP", forwarded)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	require.Equal(t, []string{"submit:203.0.113.7:req-9", "submit:203.0.113.7:req-9", "submit:203.0.113.7:req-9"}, keys)
}

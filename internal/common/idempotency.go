package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Idem provides an Idempotency-Key middleware backed by Redis. A replayed key
// on the same path is refused with 409 so a double-clicked checkout form
// cannot redeem the card twice.
type Idem struct {
	R      redis.Cmdable
	TTL    time.Duration
	Prefix string
}

func (i Idem) key(r *http.Request, header string) string {
	prefix := i.Prefix
	if prefix == "" {
		prefix = "idem:"
	}
	sum := sha256.Sum256([]byte(r.Method + " " + r.URL.Path + "\n" + header))
	return prefix + hex.EncodeToString(sum[:])
}

// Middleware enforces idempotency semantics for write endpoints. The key is
// released when the handler answers 5xx so the client may retry.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		if header == "" {
			header = strings.TrimSpace(r.Header.Get("X-Idempotency-Key"))
		}
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ttl := i.TTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		key := i.key(r, header)
		ok, err := i.R.SetNX(r.Context(), key, "locked", ttl).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error")
			return
		}
		if !ok {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request")
			return
		}

		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if rec.status >= http.StatusInternalServerError {
				_ = i.R.Del(context.Background(), key).Err()
			}
		}()
		next.ServeHTTP(rec, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

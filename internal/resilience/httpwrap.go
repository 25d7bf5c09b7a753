package resilience

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// HTTPClient wraps an http.Client with a bounded timeout and a circuit breaker.
// Requests are attempted exactly once; callers own any retry policy.
type HTTPClient struct {
	Client  *http.Client
	Breaker *Breaker
	Timeout time.Duration
	Target  string
	Logger  *zerolog.Logger
	// Observe, when set, receives the outcome label and latency of every call.
	Observe func(target, status string, d time.Duration)
}

// Do executes req once. A 5xx response counts as a breaker failure but is still
// returned to the caller. When the breaker is open ErrOpenCircuit is returned.
// The returned CancelFunc must be called once the response body is consumed.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, context.CancelFunc, error) {
	if cl.Client == nil {
		return nil, nil, errors.New("resilience: http client not configured")
	}
	breaker := cl.Breaker
	if breaker == nil {
		breaker = NewBreaker(1, 1, time.Second)
	}
	if !breaker.Allow(ctx) {
		cl.observe("circuit_open", 0)
		return nil, nil, ErrOpenCircuit
	}

	timeout := cl.Timeout
	if timeout <= 0 {
		timeout = cl.Client.Timeout
	}
	var callCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}

	start := time.Now()
	resp, err := cl.Client.Do(req.WithContext(callCtx))
	elapsed := time.Since(start)
	if err != nil {
		cancel()
		breaker.Report(ctx, false)
		cl.observe("transport_error", elapsed)
		cl.logFailure(ctx, req, err, elapsed)
		return nil, nil, err
	}
	breaker.Report(ctx, resp.StatusCode < http.StatusInternalServerError)
	cl.observe(strconv.Itoa(resp.StatusCode), elapsed)
	return resp, cancel, nil
}

func (cl HTTPClient) observe(status string, d time.Duration) {
	if cl.Observe != nil {
		cl.Observe(cl.targetLabel(), status, d)
	}
}

func (cl HTTPClient) targetLabel() string {
	if t := strings.TrimSpace(cl.Target); t != "" {
		return t
	}
	return "default"
}

func (cl HTTPClient) logFailure(ctx context.Context, req *http.Request, err error, elapsed time.Duration) {
	logger := cl.Logger
	if ctxLogger := zerolog.Ctx(ctx); ctxLogger != nil && ctxLogger.GetLevel() != zerolog.Disabled {
		logger = ctxLogger
	}
	if logger == nil {
		return
	}
	evt := logger.Warn().Err(err).
		Str("target", cl.targetLabel()).
		Str("method", req.Method).
		Str("host", req.URL.Host).
		Int64("duration_ms", elapsed.Milliseconds())
	if traceID := traceIDFromContext(ctx); traceID != "" {
		evt = evt.Str("trace_id", traceID)
	}
	evt.Msg("outbound_request_failed")
}

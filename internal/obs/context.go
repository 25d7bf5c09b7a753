package obs

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type routePatternKey struct{}

// WithRoutePattern pins the route label for handlers mounted outside chi.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RouteLabel names the route for spans, metrics and logs. A pinned pattern
// wins over chi's matched pattern; fallback is used when neither is set.
// chi fills its pattern during routing, so call it after next.ServeHTTP.
func RouteLabel(r *http.Request, fallback string) string {
	ctx := r.Context()
	if v, ok := ctx.Value(routePatternKey{}).(string); ok && v != "" {
		return v
	}
	if rc := chi.RouteContext(ctx); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return fallback
}

package requestid

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5/middleware"
)

type contextKey struct{}

// WithContext stores id in ctx. The id is also stored under chi's request id
// key so chi middleware such as middleware.GetReqID sees the same value.
func WithContext(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, middleware.RequestIDKey, id)
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the request id, or "" if none was set.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// LoggerExtractor adds request_id to log records written with a request context.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id := FromContext(ctx); id != "" {
			return slog.String("request_id", id), true
		}
		return slog.Attr{}, false
	}
}

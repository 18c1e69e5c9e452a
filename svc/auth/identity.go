package auth

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/propfin/pkg/logger"
)

// Identity is the caller as asserted by the upstream gateway.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

type identityKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity set by Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != uuid.Nil
}

// UserID returns the caller id or uuid.Nil.
func UserID(ctx context.Context) uuid.UUID {
	id, _ := FromContext(ctx)
	return id.UserID
}

// LoggerExtractor adds user_id to log records written with a request context.
func LoggerExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		id, ok := FromContext(ctx)
		if !ok {
			return slog.Attr{}, false
		}
		return logger.UserID(id.UserID), true
	}
}

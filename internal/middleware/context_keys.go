package middleware

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
)

// contextKey is a private type for values stored in request contexts.
type contextKey string

const (
	loggerCtxKey  = contextKey("logger")
	actorEmailKey = contextKey("actorEmail")
)

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, logger)
}

// GetLoggerFromCtx retrieves the request-scoped logger, falling back to the default logger.
func GetLoggerFromCtx(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerCtxKey).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return slog.Default()
}

// WithActorEmail returns a copy of ctx carrying the authenticated actor.
func WithActorEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, actorEmailKey, email)
}

// GetActorEmailFromContext retrieves the authenticated actor's email from the Gin context.
func GetActorEmailFromContext(c *gin.Context) (string, bool) {
	email, ok := c.Request.Context().Value(actorEmailKey).(string)
	if !ok || email == "" {
		return "", false
	}
	return email, true
}

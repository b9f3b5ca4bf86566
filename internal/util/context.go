package util

import (
	"context"
	"time"
)

type contextKey string

const (
	CTXKeyRequestID      contextKey = "request_id"
	CTXKeyDisableLogger  contextKey = "disable_logger"
	CTXKeyAdminPrincipal contextKey = "admin_principal"
)

// RequestIDFromContext returns the ID of the (HTTP) request, returning an error if it is not present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(CTXKeyRequestID)
	if val == nil {
		return "", false
	}

	id, ok := val.(string)
	return id, ok
}

// ShouldDisableLogger checks whether the logger instance should be disabled for the provided context.
func ShouldDisableLogger(ctx context.Context) bool {
	if s := ctx.Value(CTXKeyDisableLogger); s != nil {
		if b, ok := s.(bool); ok {
			return b
		}
	}

	return false
}

// DisableLogger toggles the indication whether the logger instance should be disabled for the provided context.
func DisableLogger(ctx context.Context, shouldDisable bool) context.Context {
	return context.WithValue(ctx, CTXKeyDisableLogger, shouldDisable)
}

// ContextSleep blocks for d or until ctx is done. It returns false if ctx ended first.
func ContextSleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return false
	case <-timer.C:
		return true
	}
}

// WithRequestID attaches the ID of the (HTTP) request to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CTXKeyRequestID, id)
}

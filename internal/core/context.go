package core

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	ctxKeyIPAddress contextKey = "client_ip"
	ctxKeyUserAgent contextKey = "client_ua"
)

// ContextWithIPAddress adds the caller's IP address to context for run logging.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// ContextWithUserAgent adds the caller's User-Agent to context for run logging.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// GetIPAddressFromContext extracts IP address from context.
func GetIPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}

// GetUserAgentFromContext extracts User-Agent from context.
func GetUserAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return v
	}
	return ""
}

// runLogger adds the caller details carried by ctx to an engine logger.
func runLogger(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if ip := GetIPAddressFromContext(ctx); ip != "" {
		logger = logger.With("client_ip", ip)
	}
	if ua := GetUserAgentFromContext(ctx); ua != "" {
		logger = logger.With("user_agent", ua)
	}
	return logger
}

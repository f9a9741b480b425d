package api

import (
	"context"
	"time"
)

type keyType string

const (
	clientIPKey      keyType = "clientIP"
	sessionExpiryKey keyType = "sessionExpiry"
)

// ctxWithClientIP adds the resolved visitor IP to the context
func ctxWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ctxGetClientIP returns the visitor IP, or "unknown" when the middleware did not run
func ctxGetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey).(string); ok && ip != "" {
		return ip
	}
	return "unknown"
}

// ctxWithSessionExpiry records when the verified admin token expires
func ctxWithSessionExpiry(ctx context.Context, expiresAt time.Time) context.Context {
	return context.WithValue(ctx, sessionExpiryKey, expiresAt)
}

func ctxGetSessionExpiry(ctx context.Context) (time.Time, bool) {
	expiresAt, ok := ctx.Value(sessionExpiryKey).(time.Time)
	return expiresAt, ok
}

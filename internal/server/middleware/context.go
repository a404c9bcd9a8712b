package middleware

import (
	"context"

	authservice "corecrm/backend/internal/auth/service"
)

type contextKey struct{ name string }

var (
	identityKey = contextKey{"identity"}
	clientIPKey = contextKey{"client_ip"}
)

// WithIdentity returns a context carrying the authenticated identity.
// Handlers and services read it via GetIdentity.
func WithIdentity(ctx context.Context, ident *authservice.Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// GetIdentity returns the identity from context and true if set; otherwise nil, false.
func GetIdentity(ctx context.Context) (*authservice.Identity, bool) {
	v, ok := ctx.Value(identityKey).(*authservice.Identity)
	return v, ok
}

// WithClientIP returns a context carrying the request's client IP.
// The audit logger reads it via GetClientIP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// GetClientIP returns the client IP from context, or "unknown" when unset.
func GetClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

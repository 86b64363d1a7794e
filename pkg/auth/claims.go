// Package auth provides JWT-based tenant authentication. Tokens are HMAC
// signed with a shared secret issued by the account platform; each token
// carries the tenant it is scoped to.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// TenantKey is the context key under which the authenticated tenant id is
// stored.
const TenantKey contextKey = "tenant"

// Claims is the token payload. RegisteredClaims covers the standard fields
// (sub, iss, exp); TenantID scopes every request to one tenant.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tid"`
}

// TenantFromContext retrieves the authenticated tenant id.
// Returns empty string and false when the request was not authenticated.
func TenantFromContext(ctx context.Context) (string, bool) {
	tenantID, ok := ctx.Value(TenantKey).(string)
	return tenantID, ok
}

// RequireTenant retrieves the authenticated tenant id or errors.
func RequireTenant(ctx context.Context) (string, error) {
	tenantID, ok := TenantFromContext(ctx)
	if !ok || tenantID == "" {
		return "", fmt.Errorf("authentication required: no tenant in context")
	}
	return tenantID, nil
}

// WithTenant returns a context carrying the tenant id. Used by the middleware
// and by tests that bypass it.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantKey, tenantID)
}

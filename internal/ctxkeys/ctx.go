package ctxkeys

import (
	"context"

	"github.com/householdhq/budget/internal/service"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const IdentityKey contextKey = "identity"

// Identity returns the authenticated identity, or nil for anonymous requests.
func Identity(ctx context.Context) *service.Identity {
	identity, _ := ctx.Value(IdentityKey).(*service.Identity)
	return identity
}

func WithIdentity(ctx context.Context, identity *service.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// Package auth carries the authenticated request identity through contexts,
// shared by the HTTP middleware and the GraphQL resolvers.
package auth

import "context"

type contextKey struct{ name string }

var identityKey = &contextKey{"feedwall-identity"}

// Identity describes the authenticated caller.
type Identity struct {
	UserID string
	Email  string
}

// WithIdentity returns ctx enriched with the caller identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the caller identity, if present.
func FromContext(ctx context.Context) (Identity, bool) {
	value := ctx.Value(identityKey)
	if value == nil {
		return Identity{}, false
	}
	id, ok := value.(Identity)
	return id, ok
}

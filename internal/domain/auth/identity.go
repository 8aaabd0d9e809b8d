// Package auth carries the caller identity supplied by the authentication
// collaborator. Credential verification happens upstream; every cart and
// checkout operation only needs to know who is calling.
package auth

import "context"

// Identity is the authenticated caller of a cart or checkout operation.
type Identity struct {
	UserID string
	Email  string
	Admin  bool
}

type identityKey struct{}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext extracts the identity from the context. The second return is
// false when no identity was attached.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

package auth

import "context"

// identityKey is unexported so only this package can attach a
// principal; handlers read it through IdentityFromContext.
type identityKey struct{}

// SetIdentity returns a context carrying the resolved principal.
func SetIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the principal the middleware attached,
// or nil on exempt paths and unauthenticated requests.
func IdentityFromContext(ctx context.Context) *Identity {
	if v, ok := ctx.Value(identityKey{}).(*Identity); ok {
		return v
	}
	return nil
}

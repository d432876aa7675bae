package auth

import "context"

type identityContextKey struct{}

// ContextWithIdentity attaches the verified identity to the request
// context. The pipeline writes it exactly once; handlers only read.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the identity placed by the verifier stage.
// Absence means the verifier never ran; an anonymous identity means it ran
// and found no valid token.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(Identity)
	return v, ok
}

package httpcache

import "context"

type principalKey struct{}

// WithPrincipal returns a context carrying the authenticated principal id.
// Cached responses are keyed per principal when one is present.
func WithPrincipal(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, principalKey{}, id)
}

// PrincipalFromContext returns the principal id stored by WithPrincipal,
// or "" for anonymous requests.
func PrincipalFromContext(ctx context.Context) string {
	id, _ := ctx.Value(principalKey{}).(string)
	return id
}

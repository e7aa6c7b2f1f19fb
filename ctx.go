package auth

import (
	"context"
)

var principalCtxKey = &contextKey{"principal"}
var resolverCtxKey = &contextKey{"resolver"}

type contextKey struct {
	name string
}

// WithContext sets the Principal in the given context.
func WithContext(r context.Context, p *Principal) context.Context {
	return context.WithValue(r, principalCtxKey, p)
}

// FromContext finds the principal from the context.
func FromContext(ctx context.Context) (*Principal, bool) {
	raw, ok := ctx.Value(principalCtxKey).(*Principal)
	return raw, ok
}

// WithResolverContext sets the request's Resolver in the given context.
func WithResolverContext(r context.Context, resolver *Resolver) context.Context {
	return context.WithValue(r, resolverCtxKey, resolver)
}

// ResolverFromContext finds the request's Resolver from the context.
func ResolverFromContext(ctx context.Context) (*Resolver, bool) {
	raw, ok := ctx.Value(resolverCtxKey).(*Resolver)
	return raw, ok
}

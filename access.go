package auth

import (
	"context"
	"regexp"
	"strings"
)

// AccessPolicy decides whether a resolved principal is authorized. The nil
// policy is "resolved, non-anonymous identity"; call sites override it to add
// role or permission checks without touching the resolver.
type AccessPolicy func(p *Principal) bool

// AccessDeniedHandler is the external collaborator invoked when a guard
// rejects a request. The engine only decides that access is denied and
// supplies a message and redirect target; rendering, headers, and content
// negotiation belong to the handler.
type AccessDeniedHandler interface {
	AccessDenied(ctx context.Context, message, redirect string) error
}

// AccessDeniedFunc adapts a function to AccessDeniedHandler.
type AccessDeniedFunc func(ctx context.Context, message, redirect string) error

func (f AccessDeniedFunc) AccessDenied(ctx context.Context, message, redirect string) error {
	if f == nil {
		return nil
	}
	return f(ctx, message, redirect)
}

// Guard is the boolean authorization gate built atop a request's resolver.
type Guard struct {
	resolver *Resolver
	policy   AccessPolicy
	denied   AccessDeniedHandler
	message  string
	redirect string
}

// NewGuard builds a Guard for one request's resolver.
func NewGuard(resolver *Resolver, denied AccessDeniedHandler, cfg Config) *Guard {
	return &Guard{
		resolver: resolver,
		denied:   denied,
		message:  cfg.GetAccessDeniedMessage(),
		redirect: cfg.GetAccessDeniedRedirect(),
	}
}

// WithPolicy overrides the default authorization policy for this call site.
func (g *Guard) WithPolicy(policy AccessPolicy) *Guard {
	g.policy = policy
	return g
}

// Authorized applies the policy to the resolved identity. The default policy
// passes any non-anonymous principal.
func (g *Guard) Authorized(ctx context.Context) (bool, error) {
	p, err := g.resolver.Current(ctx)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, nil
	}
	if g.policy != nil {
		return g.policy(p), nil
	}
	return true, nil
}

// RequireAuthenticated proceeds silently when the request is authorized and
// otherwise hands off to the access-denied collaborator.
func (g *Guard) RequireAuthenticated(ctx context.Context) error {
	ok, err := g.Authorized(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return g.accessDenied(ctx)
}

// RequireRecognized proceeds silently when the device is recognized and
// otherwise hands off to the access-denied collaborator. Recognition does not
// require login.
func (g *Guard) RequireRecognized(ctx context.Context) error {
	ok, err := g.resolver.IsRecognized(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return g.accessDenied(ctx)
}

func (g *Guard) accessDenied(ctx context.Context) error {
	if g.denied == nil {
		return nil
	}
	return g.denied.AccessDenied(ctx, g.message, g.redirect)
}

var uriSchemeHost = regexp.MustCompile(`^\w+://[^/]+`)

// ExtractPath strips scheme and host from a URI and guarantees a leading
// slash, so only a local path ever lands in the return-to slot.
func ExtractPath(uri string) string {
	path := uriSchemeHost.ReplaceAllString(uri, "")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// StoreLocation saves the request URI in the session so a later redirect can
// return to it.
func StoreLocation(session SessionStore, uri string) {
	if session == nil || uri == "" {
		return
	}
	session.SetReturnTo(ExtractPath(uri))
}

// StoreLocationAsBack stores the referring URL when no location is stored
// yet; used so "log in and come back" works from a login link.
func StoreLocationAsBack(session SessionStore, referer string) {
	if session == nil || referer == "" {
		return
	}
	if _, ok := session.ReturnTo(); ok {
		return
	}
	session.SetReturnTo(ExtractPath(referer))
}

// TakeStoredLocation returns the saved return-to path or the default, and
// forgets the stored value either way.
func TakeStoredLocation(session SessionStore, def string) string {
	if def == "" {
		def = "/"
	}
	if session == nil {
		return def
	}
	if path, ok := session.ReturnTo(); ok && path != "" {
		session.ClearReturnTo()
		return path
	}
	return def
}

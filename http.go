package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// routerCookieJar adapts a router.Context to the CookieJar collaborator.
type routerCookieJar struct {
	ctx router.Context
}

func (j routerCookieJar) Get(name string) (string, bool) {
	v := j.ctx.Cookies(name)
	return v, v != ""
}

func (j routerCookieJar) Set(c Cookie) {
	j.ctx.Cookie(&router.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Expires:  c.Expires,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (j routerCookieJar) Delete(name string) {
	j.ctx.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// routerHeaderSource adapts a router.Context to the HeaderSource collaborator.
type routerHeaderSource struct {
	ctx router.Context
}

func (h routerHeaderSource) Get(name string) string {
	return h.ctx.Header(name)
}

// resolverLocalsKey caches the request's resolver in router locals so every
// middleware and handler shares one memoized resolution per request.
const resolverLocalsKey = "auth:resolver"

// RouteGuard wires the identity resolver into go-router: it builds one
// resolver per request from the request's cookies, headers, and signed
// session, and exposes guard middleware on top of it.
type RouteGuard struct {
	cfg        Config
	repo       RepositoryManager
	creds      *Credentials
	issuer     *TokenIssuer
	signingKey []byte
	sink       ActivitySink

	Logger Logger

	// AccessDeniedHandler renders the rejection. The default negotiates:
	// browsers get a stored-location redirect, everything else a 401
	// challenge.
	AccessDeniedHandler func(c router.Context, message, redirect string) error
	ErrorHandler        func(c router.Context, err error) error
}

// NewRouteGuard builds the HTTP glue. The signing key protects the session
// cookie and must not be empty in production.
func NewRouteGuard(repo RepositoryManager, cfg Config, signingKey []byte) *RouteGuard {
	g := &RouteGuard{
		cfg:        cfg,
		repo:       repo,
		creds:      NewCredentials(cfg),
		issuer:     NewTokenIssuer(repo.Principals(), cfg),
		signingKey: signingKey,
		sink:       noopActivitySink{},
		Logger:     defLogger{},
	}

	g.AccessDeniedHandler = g.defaultAccessDeniedHandler
	g.ErrorHandler = g.defaultErrHandler

	return g
}

// WithActivitySink routes auth lifecycle events to the given sink.
func (g *RouteGuard) WithActivitySink(sink ActivitySink) *RouteGuard {
	g.sink = normalizeActivitySink(sink)
	return g
}

// WithLogger overrides the guard logger.
func (g *RouteGuard) WithLogger(l Logger) *RouteGuard {
	if l != nil {
		g.Logger = l
	}
	return g
}

// Credentials exposes the credential engine the guard authenticates with.
func (g *RouteGuard) Credentials() *Credentials {
	return g.creds
}

// Issuer exposes the token issuer the guard rotates remember tokens with.
func (g *RouteGuard) Issuer() *TokenIssuer {
	return g.issuer
}

// ResolverFor returns the request's resolver, building and caching it on
// first use.
func (g *RouteGuard) ResolverFor(c router.Context) *Resolver {
	if cached := c.Locals(resolverLocalsKey); cached != nil {
		if r, ok := cached.(*Resolver); ok {
			return r
		}
	}

	jar := routerCookieJar{ctx: c}

	r := NewResolver(ResolverDeps{
		Store:   g.repo.Principals(),
		Creds:   g.creds,
		Issuer:  g.issuer,
		Session: NewJWTSession(jar, g.signingKey, g.cfg),
		Cookies: jar,
		Headers: routerHeaderSource{ctx: c},
		Logger:  g.Logger,
		Sink:    g.sink,
	}, g.cfg)

	c.Locals(resolverLocalsKey, r)
	return r
}

// CurrentPrincipal resolves the request's principal; nil means anonymous.
func (g *RouteGuard) CurrentPrincipal(c router.Context) (*Principal, error) {
	return g.ResolverFor(c).Current(c.Context())
}

// RequireAuthenticated gates a route on a resolved, authorized identity. An
// optional policy narrows the default "any logged-in principal" check. The
// resolved principal is placed on the request context for downstream handlers.
func (g *RouteGuard) RequireAuthenticated(policy ...AccessPolicy) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			resolver := g.ResolverFor(c)

			guard := NewGuard(resolver, nil, g.cfg)
			if len(policy) > 0 {
				guard.WithPolicy(policy[0])
			}

			ok, err := guard.Authorized(c.Context())
			if err != nil {
				return g.ErrorHandler(c, err)
			}
			if !ok {
				return g.AccessDeniedHandler(c, g.cfg.GetAccessDeniedMessage(), g.cfg.GetAccessDeniedRedirect())
			}

			p, err := resolver.Current(c.Context())
			if err != nil {
				return g.ErrorHandler(c, err)
			}

			c.SetContext(WithContext(c.Context(), p))
			return c.Next()
		}
	}
}

// RequireRecognized gates a route on device recognition, which does not
// require login.
func (g *RouteGuard) RequireRecognized() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			resolver := g.ResolverFor(c)

			ok, err := resolver.IsRecognized(c.Context())
			if err != nil {
				return g.ErrorHandler(c, err)
			}
			if !ok {
				return g.AccessDeniedHandler(c, g.cfg.GetAccessDeniedMessage(), g.cfg.GetAccessDeniedRedirect())
			}

			return c.Next()
		}
	}
}

// wantsHTML decides interactive vs machine handling from the Accept header.
func wantsHTML(c router.Context) bool {
	return strings.Contains(c.Header("Accept"), "text/html")
}

func (g *RouteGuard) defaultAccessDeniedHandler(c router.Context, message, redirect string) error {
	if !wantsHTML(c) {
		c.SetHeader("WWW-Authenticate", `Basic realm="Web Password"`)
		return c.Status(http.StatusUnauthorized).SendString("Could not authenticate you")
	}

	StoreLocation(g.ResolverFor(c).Session(), c.OriginalURL())

	g.Logger.Info(
		"access denied, redirecting",
		"path", c.OriginalURL(),
		"redirect", redirect,
	)

	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return flash.WithError(c, router.ViewContext{
		"system_message": message,
	}).Redirect(redirect, statusCode)
}

func (g *RouteGuard) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	g.Logger.Error(
		"request error",
		"error", richErr.Message,
		"category", richErr.Category,
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return g.AccessDeniedHandler(c, richErr.Message, g.cfg.GetAccessDeniedRedirect())
	default:
		return c.Status(richErr.Code).Render("errors/500", router.ViewContext{
			"error": richErr,
		})
	}
}

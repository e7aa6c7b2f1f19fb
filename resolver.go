package auth

import (
	"context"
	"time"
)

// resolutionState is the explicit tri-state for the per-request identity
// cache: not yet computed, computed to a principal, or computed to anonymous.
type resolutionState int

const (
	notResolved resolutionState = iota
	resolvedPrincipal
	resolvedAnonymous
)

// Resolver answers "who is making this request" from the available signals:
// an established session, HTTP Basic credentials, and the remember cookie,
// tried in that fixed priority order. The first outcome, anonymous included,
// is cached for the rest of the request.
//
// A Resolver is request-scoped. Construct one per request and discard it when
// the request ends; sharing one across requests leaks identity between them.
type Resolver struct {
	store   PrincipalStore
	creds   *Credentials
	issuer  *TokenIssuer
	session SessionStore
	cookies CookieJar
	headers HeaderSource

	rememberCookie    string
	recognitionCookie string

	logger Logger
	sink   ActivitySink
	now    func() time.Time

	state   resolutionState
	current *Principal

	recognitionState resolutionState
	recognized       *Principal
}

// ResolverDeps collects the per-request inputs and shared collaborators a
// Resolver needs.
type ResolverDeps struct {
	Store   PrincipalStore
	Creds   *Credentials
	Issuer  *TokenIssuer
	Session SessionStore
	Cookies CookieJar
	Headers HeaderSource
	Logger  Logger
	Sink    ActivitySink
}

// NewResolver builds a fresh, unresolved Resolver for one request.
func NewResolver(deps ResolverDeps, cfg Config) *Resolver {
	logger := deps.Logger
	if logger == nil {
		logger = defLogger{}
	}

	return &Resolver{
		store:             deps.Store,
		creds:             deps.Creds,
		issuer:            deps.Issuer,
		session:           deps.Session,
		cookies:           deps.Cookies,
		headers:           deps.Headers,
		rememberCookie:    cfg.GetRememberCookieName(),
		recognitionCookie: cfg.GetRecognitionCookieName(),
		logger:            logger,
		sink:              normalizeActivitySink(deps.Sink),
		now:               time.Now,
	}
}

// WithClock overrides the resolver's clock for tests.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	if now != nil {
		r.now = now
	}
	return r
}

// Current resolves the request's principal, running the strategy chain at
// most once. A nil principal with a nil error is the anonymous outcome, a
// normal value. Store failures propagate unchanged and leave the cache
// uncomputed.
func (r *Resolver) Current(ctx context.Context) (*Principal, error) {
	switch r.state {
	case resolvedPrincipal:
		return r.current, nil
	case resolvedAnonymous:
		return nil, nil
	}

	if p, err := r.fromSession(ctx); err != nil {
		return nil, err
	} else if p != nil {
		// session hit resolves without touching the session store
		r.state = resolvedPrincipal
		r.current = p
		return p, nil
	}

	if p, err := r.fromBasicAuth(ctx); err != nil {
		return nil, err
	} else if p != nil {
		r.SetCurrent(p)
		return p, nil
	}

	if p, err := r.fromRememberCookie(ctx); err != nil {
		return nil, err
	} else if p != nil {
		r.SetCurrent(p)
		return p, nil
	}

	r.state = resolvedAnonymous
	r.current = nil
	return nil, nil
}

// LoggedIn reports whether resolution produced a principal.
func (r *Resolver) LoggedIn(ctx context.Context) (bool, error) {
	p, err := r.Current(ctx)
	return p != nil, err
}

// SetCurrent is the identity-assignment contract: a principal writes its id
// into the session, nil (the anonymous outcome) clears it. This is the only
// sanctioned way to mutate session identity from outside the resolver.
func (r *Resolver) SetCurrent(p *Principal) {
	if p == nil {
		if r.session != nil {
			r.session.ClearPrincipalID()
		}
		r.state = resolvedAnonymous
		r.current = nil
		return
	}

	if r.session != nil {
		r.session.SetPrincipalID(p.ID)
	}
	r.state = resolvedPrincipal
	r.current = p
}

// Session exposes the session store backing this resolver so callers can
// manage the return-to slot without re-deriving the store.
func (r *Resolver) Session() SessionStore {
	return r.session
}

// Recognized answers "is this a device we have seen before", independent of
// login state: a resolved identity counts first, then the recognition cookie.
// Recognition tokens do not expire. Memoized once per request like Current.
func (r *Resolver) Recognized(ctx context.Context) (*Principal, error) {
	switch r.recognitionState {
	case resolvedPrincipal:
		return r.recognized, nil
	case resolvedAnonymous:
		return nil, nil
	}

	p, err := r.Current(ctx)
	if err != nil {
		return nil, err
	}

	if p == nil {
		p, err = r.fromRecognitionCookie(ctx)
		if err != nil {
			return nil, err
		}
	}

	if p == nil {
		r.recognitionState = resolvedAnonymous
		return nil, nil
	}

	r.recognitionState = resolvedPrincipal
	r.recognized = p
	return p, nil
}

// IsRecognized reports whether recognition produced a principal.
func (r *Resolver) IsRecognized(ctx context.Context) (bool, error) {
	p, err := r.Recognized(ctx)
	return p != nil, err
}

func (r *Resolver) fromSession(ctx context.Context) (*Principal, error) {
	if r.session == nil {
		return nil, nil
	}

	id, ok := r.session.PrincipalID()
	if !ok {
		return nil, nil
	}

	return r.store.FindByID(ctx, id)
}

func (r *Resolver) fromBasicAuth(ctx context.Context) (*Principal, error) {
	username, password, ok := BasicAuthCredentials(r.headers)
	if !ok {
		return nil, nil
	}

	p, err := r.creds.AuthenticateByEmail(ctx, r.store, username, password)
	if err != nil {
		return nil, err
	}

	if p == nil {
		r.emit(ctx, ActivityEventLoginFailure, "", map[string]any{"strategy": "basic"})
		return nil, nil
	}

	r.emit(ctx, ActivityEventLoginSuccess, p.ID.String(), map[string]any{"strategy": "basic"})
	return p, nil
}

// fromRememberCookie rotates the token on every successful use: a fresh
// expiry window of the configured duration is granted and the cookie value is
// refreshed. This is the sliding-session behavior.
func (r *Resolver) fromRememberCookie(ctx context.Context) (*Principal, error) {
	if r.cookies == nil {
		return nil, nil
	}

	value, ok := r.cookies.Get(r.rememberCookie)
	if !ok || value == "" {
		return nil, nil
	}

	p, err := r.store.FindByRememberToken(ctx, value)
	if err != nil {
		return nil, err
	}

	if p == nil || !p.RememberTokenLive(r.now()) {
		return nil, nil
	}

	if err := r.issuer.Remember(ctx, p); err != nil {
		return nil, err
	}

	r.cookies.Set(Cookie{
		Name:    r.rememberCookie,
		Value:   *p.RememberToken,
		Expires: *p.RememberTokenExpiresAt,
	})

	r.emit(ctx, ActivityEventRememberRotation, p.ID.String(), map[string]any{"strategy": "remember_cookie"})
	return p, nil
}

func (r *Resolver) fromRecognitionCookie(ctx context.Context) (*Principal, error) {
	if r.cookies == nil {
		return nil, nil
	}

	value, ok := r.cookies.Get(r.recognitionCookie)
	if !ok || value == "" {
		return nil, nil
	}

	return r.store.FindByRecognitionToken(ctx, value)
}

func (r *Resolver) emit(ctx context.Context, eventType ActivityEventType, principalID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:   eventType,
		PrincipalID: principalID,
		Metadata:    metadata,
		OccurredAt:  r.now(),
	}

	if err := r.sink.Record(ctx, event); err != nil {
		r.logger.Error("activity sink record error", "error", err)
	}
}

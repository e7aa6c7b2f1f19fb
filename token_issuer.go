package auth

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// TokenIssuer grants and revokes the expiring bearer tokens attached to a
// principal. Remember-token grants persist immediately so the token and its
// expiry are never committed apart.
type TokenIssuer struct {
	store    PrincipalStore
	hasher   Hasher
	remember time.Duration
	reset    time.Duration
	logger   Logger
	now      func() time.Time
}

// NewTokenIssuer builds a TokenIssuer against the given store.
func NewTokenIssuer(store PrincipalStore, cfg Config) *TokenIssuer {
	return &TokenIssuer{
		store:    store,
		hasher:   NewHasher(),
		remember: cfg.GetRememberDuration(),
		reset:    cfg.GetResetCapabilityDuration(),
		logger:   defLogger{},
		now:      time.Now,
	}
}

func (t *TokenIssuer) WithLogger(l Logger) *TokenIssuer {
	if l != nil {
		t.logger = l
	}
	return t
}

// WithClock overrides the issuer's clock. Tests use this to simulate expiry.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	if now != nil {
		t.now = now
	}
	return t
}

// RememberDuration returns the configured default remember window.
func (t *TokenIssuer) RememberDuration() time.Duration {
	return t.remember
}

// GrantRememberToken sets a fresh expiry window and derives the token from
// the email and that expiry under the principal's salt, so forging a token
// requires the salt. Both fields persist as a unit, immediately.
func (t *TokenIssuer) GrantRememberToken(ctx context.Context, p *Principal, duration time.Duration) error {
	if duration <= 0 {
		duration = t.remember
	}

	expiresAt := t.now().Add(duration).UTC()
	token := t.hasher.Hash(fmt.Sprintf("%s--%s", p.Email, expiresAt.Format(time.RFC3339Nano)), p.Salt)

	p.RememberToken = &token
	p.RememberTokenExpiresAt = &expiresAt

	if err := t.store.Save(ctx, p); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist remember token")
	}
	return nil
}

// Remember grants a remember token for the configured default duration.
func (t *TokenIssuer) Remember(ctx context.Context, p *Principal) error {
	return t.GrantRememberToken(ctx, p, t.remember)
}

// GrantResetCapability grants a short-lived remember token that acts as a
// password-reset capability, and flags the principal as having just requested
// a reset.
func (t *TokenIssuer) GrantResetCapability(ctx context.Context, p *Principal) error {
	p.recentlyRequestedReset = true
	return t.GrantRememberToken(ctx, p, t.reset)
}

// RevokeRememberToken clears the token and its expiry together.
func (t *TokenIssuer) RevokeRememberToken(ctx context.Context, p *Principal) error {
	p.RememberToken = nil
	p.RememberTokenExpiresAt = nil

	if err := t.store.Save(ctx, p); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke remember token")
	}
	return nil
}

// RememberTokenLive reports whether the principal's remember token counts as
// present at the issuer's current time.
func (t *TokenIssuer) RememberTokenLive(p *Principal) bool {
	return p != nil && p.RememberTokenLive(t.now())
}

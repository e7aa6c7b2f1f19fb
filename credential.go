package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

// CredentialChange captures one atomic, credential-sensitive mutation. Empty
// fields mean "unchanged"; an empty Password leaves the stored hash untouched
// so callers can update other fields without re-entering a password.
type CredentialChange struct {
	Email           string
	Password        string
	Confirmation    string
	CurrentPassword string
	Attributes      map[string]any
}

// Credentials owns password rules and the principal's authentication state
// transitions. It is a standalone engine: consumers hold a reference and
// forward calls rather than mixing the behavior into their own types.
type Credentials struct {
	hasher Hasher
	minLen int
	maxLen int
	logger Logger
}

// NewCredentials builds the credential engine from explicit configuration.
func NewCredentials(cfg Config) *Credentials {
	return &Credentials{
		hasher: NewHasher(),
		minLen: cfg.GetPasswordLengthMin(),
		maxLen: cfg.GetPasswordLengthMax(),
		logger: defLogger{},
	}
}

func (c *Credentials) WithLogger(l Logger) *Credentials {
	if l != nil {
		c.logger = l
	}
	return c
}

// Hasher exposes the engine's hasher so collaborators (token issuer, stores)
// derive digests the same way.
func (c *Credentials) Hasher() Hasher {
	return c.hasher
}

// Apply validates and applies a credential change. Either every field commits
// or none do: validation runs completely before the principal is touched.
// Failures come back as field-attached validation errors.
func (c *Credentials) Apply(p *Principal, ch CredentialChange, now time.Time) error {
	newEmail := p.Email
	if ch.Email != "" {
		newEmail = ch.Email
	}

	settingPassword := ch.Password != ""
	emailChanging := p.originalEmail != "" && !strings.EqualFold(newEmail, p.originalEmail)

	// the gate only guards records previously loaded from the store; the
	// first-ever credential set has no stored hash to authenticate against
	required := p.originalEmail != "" && (emailChanging || settingPassword)
	if p.currentPasswordRequired != nil {
		required = *p.currentPasswordRequired
	}
	p.currentPasswordRequired = nil

	fieldErrors := validation.Errors{}

	if required && !c.Authenticate(p, ch.CurrentPassword) {
		fieldErrors["current_password"] = ErrCurrentPasswordIncorrect
	}

	if settingPassword {
		if ch.Password != ch.Confirmation {
			fieldErrors["password_confirmation"] = fmt.Errorf("password confirmation does not match")
		}
		if n := len(ch.Password); n < c.minLen || n > c.maxLen {
			fieldErrors["password"] = fmt.Errorf("password length must be between %d and %d", c.minLen, c.maxLen)
		}
	}

	if len(fieldErrors) > 0 {
		return fieldErrors
	}

	if ch.Email != "" {
		p.Email = ch.Email
	}
	if len(ch.Attributes) > 0 {
		p.ApplyAttributes(ch.Attributes)
	}

	if settingPassword {
		if p.Salt == "" {
			createdAt := now
			if p.CreatedAt != nil {
				createdAt = *p.CreatedAt
			}
			p.Salt = c.hasher.NewSalt(createdAt, p.Email)
		}
		p.PasswordHash = c.hasher.Hash(ch.Password, p.Salt)
	}

	return nil
}

// Authenticate reports whether the plaintext matches the stored digest.
func (c *Credentials) Authenticate(p *Principal, plain string) bool {
	if p == nil || p.PasswordHash == "" || p.Salt == "" {
		return false
	}
	return c.hasher.Verify(plain, p.Salt, p.PasswordHash)
}

// AuthenticateByEmail looks a principal up by exact email match, requires an
// activation timestamp, and verifies the password. No match, an unactivated
// account, and a wrong password are indistinguishable: all return (nil, nil).
// Store failures propagate unchanged.
func (c *Credentials) AuthenticateByEmail(ctx context.Context, store PrincipalStore, email, plain string) (*Principal, error) {
	p, err := store.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if p == nil || p.ActivatedAt == nil || !c.Authenticate(p, plain) {
		return nil, nil
	}

	return p, nil
}

// Activate marks the principal eligible for password authentication. Calling
// it again is a no-op apart from the transient flag: the first activation
// timestamp is kept.
func (c *Credentials) Activate(p *Principal, now time.Time) {
	p.recentlyActivated = true
	p.ActivationCode = nil
	if p.ActivatedAt == nil {
		at := now.UTC()
		p.ActivatedAt = &at
	}
}

// RequestActivation stamps a fresh activation code and clears the activation
// timestamp, returning the principal to the unactivated state.
func (c *Credentials) RequestActivation(p *Principal) {
	p.recentlyRequestedActivation = true
	p.ActivatedAt = nil
	code := NewOpaqueToken()
	p.ActivationCode = &code
}

// ResetPassword sets a new password without the current-password gate; the
// caller has already proven control through a reset capability token.
func (c *Credentials) ResetPassword(p *Principal, plain, confirmation string, now time.Time) error {
	if plain == "" {
		return validation.Errors{"password": ErrNoEmptyString}
	}
	p.RequireCurrentPassword(false)
	return c.Apply(p, CredentialChange{Password: plain, Confirmation: confirmation}, now)
}

package auth

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// Principal is the authenticated entity. ActivationCode and ActivatedAt are
// mutually exclusive: the presence of an activation code means the principal
// has not activated yet. RememberToken and RememberTokenExpiresAt are set and
// cleared together; a token past its expiry is treated as if absent.
type Principal struct {
	bun.BaseModel `bun:"table:principals,alias:prn"`

	ID                     uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email                  string     `bun:"email,notnull,unique" json:"email,omitempty"`
	FirstName              string     `bun:"first_name" json:"first_name,omitempty"`
	LastName               string     `bun:"last_name" json:"last_name,omitempty"`
	Phone                  string     `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash           string     `bun:"password_hash" json:"-"`
	Salt                   string     `bun:"salt" json:"-"`
	ActivationCode         *string    `bun:"activation_code,nullzero" json:"-"`
	ActivatedAt            *time.Time `bun:"activated_at,nullzero" json:"activated_at,omitempty"`
	RecognitionToken       string     `bun:"recognition_token" json:"-"`
	RememberToken          *string    `bun:"remember_token,nullzero" json:"-"`
	RememberTokenExpiresAt *time.Time `bun:"remember_token_expires_at,nullzero" json:"-"`
	CreatedAt              *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt              *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`

	// request/load scoped state, never persisted
	originalEmail               string
	currentPasswordRequired     *bool
	recentlyActivated           bool
	recentlyRequestedActivation bool
	recentlyRequestedReset      bool
}

// MarkLoaded records the originally-loaded email so a later mutation can tell
// whether the email is being changed away from it. Stores call this after
// every successful read.
func (p *Principal) MarkLoaded() *Principal {
	if p != nil {
		p.originalEmail = p.Email
	}
	return p
}

// OriginalEmail returns the email the record was loaded with, or the current
// email when the record was never loaded from a store.
func (p *Principal) OriginalEmail() string {
	return p.originalEmail
}

// EmailChanged reports whether the email differs from its originally-loaded
// value, ignoring case.
func (p *Principal) EmailChanged() bool {
	if p.originalEmail == "" {
		return false
	}
	return !strings.EqualFold(p.Email, p.originalEmail)
}

// Activated reports activation state: the absence of an activation code means
// the principal has activated.
func (p *Principal) Activated() bool {
	return p.ActivationCode == nil
}

// RememberTokenLive reports whether a remember token is present and unexpired
// at the given instant. Expired tokens are not erased; they simply stop
// counting here.
func (p *Principal) RememberTokenLive(now time.Time) bool {
	if p.RememberToken == nil || p.RememberTokenExpiresAt == nil {
		return false
	}
	return now.UTC().Before(p.RememberTokenExpiresAt.UTC())
}

// RecentlyActivated reports the transient just-activated flag. Reading clears
// it; the flag never survives the mutation that set it.
func (p *Principal) RecentlyActivated() bool {
	v := p.recentlyActivated
	p.recentlyActivated = false
	return v
}

// RecentlyRequestedActivation reports and clears the transient flag set by a
// re-activation request.
func (p *Principal) RecentlyRequestedActivation() bool {
	v := p.recentlyRequestedActivation
	p.recentlyRequestedActivation = false
	return v
}

// RecentlyRequestedReset reports and clears the transient flag set by a
// password-reset request.
func (p *Principal) RecentlyRequestedReset() bool {
	v := p.recentlyRequestedReset
	p.recentlyRequestedReset = false
	return v
}

// RequireCurrentPassword forces the current-password gate on or off for the
// next credential mutation, overriding the derived policy.
func (p *Principal) RequireCurrentPassword(required bool) {
	p.currentPasswordRequired = &required
}

// protectedAttributes are only mutable through the dedicated credential and
// token operations, never through ApplyAttributes.
var protectedAttributes = map[string]struct{}{
	"remember_token":            {},
	"recognition_token":         {},
	"password_hash":             {},
	"crypted_password":          {},
	"salt":                      {},
	"activation_code":           {},
	"remember_token_expires_at": {},
	"activated_at":              {},
	"current_password_required": {},
}

// ApplyAttributes is the generic bulk-update entry point for profile fields.
// Keys naming protected authentication state are ignored. It returns the keys
// that were actually applied.
func (p *Principal) ApplyAttributes(attrs map[string]any) []string {
	applied := make([]string, 0, len(attrs))
	for key, val := range attrs {
		if _, protected := protectedAttributes[key]; protected {
			continue
		}
		s, ok := val.(string)
		if !ok {
			continue
		}
		switch key {
		case "email":
			p.Email = s
		case "first_name":
			p.FirstName = s
		case "last_name":
			p.LastName = s
		case "phone_number", "phone":
			p.Phone = s
		default:
			continue
		}
		applied = append(applied, key)
	}
	return applied
}

// Validate runs field validation rules. Email uniqueness is a whole-store
// invariant and is checked at write time by the store, not here.
func (p *Principal) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.FirstName, validation.Length(0, 200)),
		validation.Field(&p.LastName, validation.Length(0, 200)),
		validation.Field(&p.Phone, validation.By(validPhoneNumber)),
	)
}

func validPhoneNumber(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	num, err := phonenumbers.Parse(s, "US")
	if err != nil {
		return err
	}
	if !phonenumbers.IsValidNumber(num) {
		return goerrors.New("invalid phone number", goerrors.CategoryValidation)
	}
	return nil
}

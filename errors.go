package auth

import (
	stderrors "errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCreds       = "invalid_credentials"
	TextCodeEmptyPassword      = "password_empty"
	TextCodePasswordLength     = "password_length"
	TextCodePasswordMismatch   = "password_confirmation_mismatch"
	TextCodeCurrentPassword    = "current_password_incorrect"
	TextCodeEmailTaken         = "email_taken"
	TextCodeResetExpired       = "reset_capability_expired"
	TextCodePrincipalNotFound  = "principal_not_found"
	TextCodeActivationNotFound = "activation_code_not_found"
	TextCodeSignupDisabled     = "signup_disabled"
	TextCodeResetDisabled      = "password_reset_disabled"
)

// ErrMismatchedHashAndPassword is the single credentials error: unknown email,
// unactivated account, and wrong password all surface as this value so callers
// cannot tell them apart.
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString is returned when an empty secret reaches a hashing entry point.
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// ErrCurrentPasswordIncorrect is the field-level failure of the current-password gate.
var ErrCurrentPasswordIncorrect = errors.New("current password is incorrect", errors.CategoryValidation).
	WithTextCode(TextCodeCurrentPassword).
	WithCode(errors.CodeBadRequest)

// ErrEmailTaken is returned when a write would violate email uniqueness.
// Comparison ignores case; storage preserves it.
var ErrEmailTaken = errors.New("email is already taken", errors.CategoryValidation).
	WithTextCode(TextCodeEmailTaken).
	WithCode(errors.CodeConflict)

// ErrPrincipalNotFound is returned by operations that address a specific
// principal which does not exist. Resolution never returns it; absence of
// identity resolves to the anonymous outcome instead.
var ErrPrincipalNotFound = errors.New("principal not found", errors.CategoryNotFound).
	WithTextCode(TextCodePrincipalNotFound).
	WithCode(errors.CodeNotFound)

// ErrResetCapabilityExpired is returned when a password-reset token is
// presented past its expiry window.
var ErrResetCapabilityExpired = errors.New("password reset capability expired", errors.CategoryAuth).
	WithTextCode(TextCodeResetExpired).
	WithCode(errors.CodeUnauthorized)

// ErrActivationCodeNotFound is returned when an activation code does not match
// any unactivated principal.
var ErrActivationCodeNotFound = errors.New("activation code not found", errors.CategoryNotFound).
	WithTextCode(TextCodeActivationNotFound).
	WithCode(errors.CodeNotFound)

// ErrSignupDisabled is returned when the signup feature gate is off.
var ErrSignupDisabled = errors.New("signup is currently disabled", errors.CategoryAuthz).
	WithTextCode(TextCodeSignupDisabled).
	WithCode(errors.CodeForbidden)

// ErrPasswordResetDisabled is returned when the password reset feature gate is off.
var ErrPasswordResetDisabled = errors.New("password reset is currently disabled", errors.CategoryAuthz).
	WithTextCode(TextCodeResetDisabled).
	WithCode(errors.CodeForbidden)

// isFieldValidationError reports whether err carries field-attached
// validation failures, which pass through to the caller unwrapped.
func isFieldValidationError(err error) bool {
	var verrs validation.Errors
	return stderrors.As(err, &verrs)
}

// FormatValidationErrorToMap flattens field-attached validation errors into a
// field -> message map for form rendering.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if stderrors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["error"] = err.Error()
	return out
}

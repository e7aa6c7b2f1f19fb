package auth_test

import (
	stderrors "errors"
	"testing"

	auth "github.com/ardes/authenticated-system"
	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrorShapes(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		category any
		textCode string
		code     int
	}{
		{"invalid credentials", auth.ErrMismatchedHashAndPassword, goerrors.CategoryAuth, auth.TextCodeInvalidCreds, goerrors.CodeUnauthorized},
		{"empty password", auth.ErrNoEmptyString, goerrors.CategoryValidation, auth.TextCodeEmptyPassword, goerrors.CodeBadRequest},
		{"current password", auth.ErrCurrentPasswordIncorrect, goerrors.CategoryValidation, auth.TextCodeCurrentPassword, goerrors.CodeBadRequest},
		{"email taken", auth.ErrEmailTaken, goerrors.CategoryValidation, auth.TextCodeEmailTaken, goerrors.CodeConflict},
		{"principal not found", auth.ErrPrincipalNotFound, goerrors.CategoryNotFound, auth.TextCodePrincipalNotFound, goerrors.CodeNotFound},
		{"reset expired", auth.ErrResetCapabilityExpired, goerrors.CategoryAuth, auth.TextCodeResetExpired, goerrors.CodeUnauthorized},
		{"activation code not found", auth.ErrActivationCodeNotFound, goerrors.CategoryNotFound, auth.TextCodeActivationNotFound, goerrors.CodeNotFound},
		{"signup disabled", auth.ErrSignupDisabled, goerrors.CategoryAuthz, auth.TextCodeSignupDisabled, goerrors.CodeForbidden},
		{"reset disabled", auth.ErrPasswordResetDisabled, goerrors.CategoryAuthz, auth.TextCodeResetDisabled, goerrors.CodeForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var richErr *goerrors.Error
			require.ErrorAs(t, tc.err, &richErr)

			assert.Equal(t, tc.category, richErr.Category)
			assert.Equal(t, tc.textCode, richErr.TextCode)
			assert.Equal(t, tc.code, richErr.Code)
		})
	}
}

func TestFormatValidationErrorToMap(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		assert.Empty(t, auth.FormatValidationErrorToMap(nil))
	})

	t.Run("field errors flatten to field messages", func(t *testing.T) {
		verrs := validation.Errors{
			"email":    stderrors.New("must be a valid email address"),
			"password": stderrors.New("cannot be blank"),
			"phone":    nil,
		}

		got := auth.FormatValidationErrorToMap(verrs)
		assert.Equal(t, map[string]string{
			"email":    "must be a valid email address",
			"password": "cannot be blank",
		}, got)
	})

	t.Run("plain errors land under a generic key", func(t *testing.T) {
		got := auth.FormatValidationErrorToMap(stderrors.New("kaboom"))
		assert.Equal(t, map[string]string{"error": "kaboom"}, got)
	})
}

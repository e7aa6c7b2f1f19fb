package auth

import "time"

// Cookie and session key names are part of the wire contract and must stay
// byte-exact for existing clients.
const (
	DefaultRememberCookieName    = "auth_token"
	DefaultRecognitionCookieName = "recognition_token"
	DefaultSessionPrincipalKey   = "principal_id"
	DefaultSessionReturnToKey    = "return_to"
)

const (
	DefaultRememberDuration          = 14 * 24 * time.Hour
	DefaultResetCapabilityDuration   = time.Hour
	DefaultRecognitionCookieDuration = 365 * 24 * time.Hour
	DefaultPasswordLengthMin         = 4
	DefaultPasswordLengthMax         = 40
)

// Settings is the concrete Config used when a consumer has no configuration
// layer of its own. The zero value is not usable; start from DefaultSettings.
type Settings struct {
	RememberDuration          time.Duration
	ResetCapabilityDuration   time.Duration
	PasswordLengthMin         int
	PasswordLengthMax         int
	RememberCookieName        string
	RecognitionCookieName     string
	RecognitionCookieDuration time.Duration
	SessionPrincipalKey       string
	SessionReturnToKey        string
	AccessDeniedMessage       string
	AccessDeniedRedirect      string
}

// DefaultSettings returns Settings with every option at its default.
func DefaultSettings() *Settings {
	return &Settings{
		RememberDuration:          DefaultRememberDuration,
		ResetCapabilityDuration:   DefaultResetCapabilityDuration,
		PasswordLengthMin:         DefaultPasswordLengthMin,
		PasswordLengthMax:         DefaultPasswordLengthMax,
		RememberCookieName:        DefaultRememberCookieName,
		RecognitionCookieName:     DefaultRecognitionCookieName,
		RecognitionCookieDuration: DefaultRecognitionCookieDuration,
		SessionPrincipalKey:       DefaultSessionPrincipalKey,
		SessionReturnToKey:        DefaultSessionReturnToKey,
		AccessDeniedMessage:       "You need to login before viewing that page",
		AccessDeniedRedirect:      "/login",
	}
}

func (s *Settings) GetRememberDuration() time.Duration {
	if s.RememberDuration <= 0 {
		return DefaultRememberDuration
	}
	return s.RememberDuration
}

func (s *Settings) GetResetCapabilityDuration() time.Duration {
	if s.ResetCapabilityDuration <= 0 {
		return DefaultResetCapabilityDuration
	}
	return s.ResetCapabilityDuration
}

func (s *Settings) GetPasswordLengthMin() int {
	if s.PasswordLengthMin <= 0 {
		return DefaultPasswordLengthMin
	}
	return s.PasswordLengthMin
}

func (s *Settings) GetPasswordLengthMax() int {
	if s.PasswordLengthMax <= 0 {
		return DefaultPasswordLengthMax
	}
	return s.PasswordLengthMax
}

func (s *Settings) GetRememberCookieName() string {
	if s.RememberCookieName == "" {
		return DefaultRememberCookieName
	}
	return s.RememberCookieName
}

func (s *Settings) GetRecognitionCookieName() string {
	if s.RecognitionCookieName == "" {
		return DefaultRecognitionCookieName
	}
	return s.RecognitionCookieName
}

func (s *Settings) GetRecognitionCookieDuration() time.Duration {
	if s.RecognitionCookieDuration <= 0 {
		return DefaultRecognitionCookieDuration
	}
	return s.RecognitionCookieDuration
}

func (s *Settings) GetSessionPrincipalKey() string {
	if s.SessionPrincipalKey == "" {
		return DefaultSessionPrincipalKey
	}
	return s.SessionPrincipalKey
}

func (s *Settings) GetSessionReturnToKey() string {
	if s.SessionReturnToKey == "" {
		return DefaultSessionReturnToKey
	}
	return s.SessionReturnToKey
}

func (s *Settings) GetAccessDeniedMessage() string {
	if s.AccessDeniedMessage == "" {
		return "You need to login before viewing that page"
	}
	return s.AccessDeniedMessage
}

func (s *Settings) GetAccessDeniedRedirect() string {
	if s.AccessDeniedRedirect == "" {
		return "/login"
	}
	return s.AccessDeniedRedirect
}

var _ Config = (*Settings)(nil)

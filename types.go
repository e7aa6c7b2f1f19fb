package auth

import (
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds engine options. Implementations are passed explicitly into
// constructors; there is no process-wide mutable default.
type Config interface {
	GetRememberDuration() time.Duration
	GetResetCapabilityDuration() time.Duration
	GetPasswordLengthMin() int
	GetPasswordLengthMax() int
	GetRememberCookieName() string
	GetRecognitionCookieName() string
	GetRecognitionCookieDuration() time.Duration
	GetSessionPrincipalKey() string
	GetSessionReturnToKey() string
	GetAccessDeniedMessage() string
	GetAccessDeniedRedirect() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

package auth

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PrincipalStore is the credential store collaborator. Finders are exact
// match, case-insensitive on email only, and return (nil, nil) when nothing
// matches: absence is a normal value, not an error. Store failures propagate
// unchanged.
type PrincipalStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Principal, error)
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	FindByRememberToken(ctx context.Context, token string) (*Principal, error)
	FindByRecognitionToken(ctx context.Context, token string) (*Principal, error)
	Save(ctx context.Context, p *Principal) error
}

// SessionStore is the framework-persisted per-client mapping. The engine
// reads and writes exactly two keys: the principal id and a return-to path.
// Cookie signing and storage backends are the surrounding framework's concern.
type SessionStore interface {
	PrincipalID() (uuid.UUID, bool)
	SetPrincipalID(id uuid.UUID)
	ClearPrincipalID()

	ReturnTo() (string, bool)
	SetReturnTo(path string)
	ClearReturnTo()
}

// Cookie is the engine's view of an outbound cookie. The HTTP glue maps it to
// whatever cookie representation the framework uses.
type Cookie struct {
	Name    string
	Value   string
	Expires time.Time
}

// CookieJar reads inbound cookie values and writes the engine's cookies.
// A missing cookie is never an error.
type CookieJar interface {
	Get(name string) (string, bool)
	Set(c Cookie)
	Delete(name string)
}

// HeaderSource exposes inbound request headers by name; absent headers return
// the empty string.
type HeaderSource interface {
	Get(name string) string
}

// basicAuthHeaders are checked in order; the first present header wins.
var basicAuthHeaders = []string{"X-HTTP_AUTHORIZATION", "HTTP_AUTHORIZATION", "Authorization"}

// BasicAuthCredentials extracts username and password from a Basic
// authorization header. Any other scheme or a malformed payload yields no
// credentials, not an error.
func BasicAuthCredentials(headers HeaderSource) (username, password string, ok bool) {
	if headers == nil {
		return "", "", false
	}

	var raw string
	for _, name := range basicAuthHeaders {
		if v := headers.Get(name); v != "" {
			raw = v
			break
		}
	}
	if raw == "" {
		return "", "", false
	}

	parts := strings.Fields(raw)
	if len(parts) != 2 || parts[0] != "Basic" {
		return "", "", false
	}

	decoded, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(parts[1])
		if err != nil {
			return "", "", false
		}
	}

	username, password, found := strings.Cut(string(decoded), ":")
	if !found || username == "" {
		return "", "", false
	}
	return username, password, true
}

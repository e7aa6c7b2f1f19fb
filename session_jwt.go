package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultSessionCookieName is the cookie carrying the signed session payload.
const DefaultSessionCookieName = "_session"

// JWTSession keeps the per-client session in a signed cookie: the principal id
// and the return-to path travel as HS256 claims, so the server stays
// stateless. A tampered or unparsable cookie degrades to an empty session,
// never an error.
type JWTSession struct {
	jar        CookieJar
	signingKey []byte
	cookieName string

	principalKey string
	returnToKey  string

	logger Logger

	loaded bool
	claims jwt.MapClaims
}

// NewJWTSession builds a session store over the request's cookie jar. Claims
// are read lazily on first access.
func NewJWTSession(jar CookieJar, signingKey []byte, cfg Config) *JWTSession {
	return &JWTSession{
		jar:          jar,
		signingKey:   signingKey,
		cookieName:   DefaultSessionCookieName,
		principalKey: cfg.GetSessionPrincipalKey(),
		returnToKey:  cfg.GetSessionReturnToKey(),
		logger:       defLogger{},
		claims:       jwt.MapClaims{},
	}
}

// WithCookieName overrides the session cookie name. Call before first access.
func (s *JWTSession) WithCookieName(name string) *JWTSession {
	if name != "" {
		s.cookieName = name
	}
	return s
}

// WithLogger overrides the session logger.
func (s *JWTSession) WithLogger(l Logger) *JWTSession {
	if l != nil {
		s.logger = l
	}
	return s
}

func (s *JWTSession) PrincipalID() (uuid.UUID, bool) {
	s.ensureLoaded()

	raw, ok := s.claims[s.principalKey].(string)
	if !ok || raw == "" {
		return uuid.Nil, false
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (s *JWTSession) SetPrincipalID(id uuid.UUID) {
	s.ensureLoaded()
	s.claims[s.principalKey] = id.String()
	s.flush()
}

func (s *JWTSession) ClearPrincipalID() {
	s.ensureLoaded()
	delete(s.claims, s.principalKey)
	s.flush()
}

func (s *JWTSession) ReturnTo() (string, bool) {
	s.ensureLoaded()

	path, ok := s.claims[s.returnToKey].(string)
	if !ok || path == "" {
		return "", false
	}
	return path, true
}

func (s *JWTSession) SetReturnTo(path string) {
	s.ensureLoaded()
	s.claims[s.returnToKey] = path
	s.flush()
}

func (s *JWTSession) ClearReturnTo() {
	s.ensureLoaded()
	delete(s.claims, s.returnToKey)
	s.flush()
}

func (s *JWTSession) ensureLoaded() {
	if s.loaded {
		return
	}
	s.loaded = true

	value, ok := s.jar.Get(s.cookieName)
	if !ok || value == "" {
		return
	}

	token, err := jwt.Parse(value, func(t *jwt.Token) (any, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		s.logger.Debug("discarding invalid session cookie", "error", err)
		return
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok {
		s.claims = claims
	}
}

// flush re-signs the claims and rewrites the cookie. An empty session deletes
// the cookie instead of shipping an empty token.
func (s *JWTSession) flush() {
	if len(s.claims) == 0 {
		s.jar.Delete(s.cookieName)
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, s.claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		s.logger.Error("could not sign session cookie", "error", err)
		return
	}

	// zero Expires makes it a browser-session cookie
	s.jar.Set(Cookie{Name: s.cookieName, Value: signed})
}

var _ SessionStore = (*JWTSession)(nil)

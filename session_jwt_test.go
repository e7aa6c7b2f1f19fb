package auth_test

import (
	"testing"

	auth "github.com/ardes/authenticated-system"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionSigningKey = []byte("0123456789abcdef0123456789abcdef")

func newJWTSession(jar *memJar) *auth.JWTSession {
	return auth.NewJWTSession(jar, sessionSigningKey, auth.DefaultSettings())
}

func TestJWTSessionRoundTrip(t *testing.T) {
	jar := newMemJar()
	id := uuid.New()

	session := newJWTSession(jar)
	session.SetPrincipalID(id)
	session.SetReturnTo("/secret/place")

	// a fresh session over the same jar must read back both values
	reloaded := newJWTSession(jar)

	gotID, ok := reloaded.PrincipalID()
	require.True(t, ok)
	assert.Equal(t, id, gotID)

	path, ok := reloaded.ReturnTo()
	require.True(t, ok)
	assert.Equal(t, "/secret/place", path)
}

func TestJWTSessionEmpty(t *testing.T) {
	session := newJWTSession(newMemJar())

	_, ok := session.PrincipalID()
	assert.False(t, ok)

	_, ok = session.ReturnTo()
	assert.False(t, ok)
}

func TestJWTSessionTamperedCookie(t *testing.T) {
	jar := newMemJar()
	session := newJWTSession(jar)
	session.SetPrincipalID(uuid.New())

	cookie, ok := jar.lastSet(auth.DefaultSessionCookieName)
	require.True(t, ok)
	jar.values[auth.DefaultSessionCookieName] = cookie.Value + "tampered"

	reloaded := newJWTSession(jar)
	_, ok = reloaded.PrincipalID()
	assert.False(t, ok, "a tampered cookie degrades to an empty session")
}

func TestJWTSessionWrongKey(t *testing.T) {
	jar := newMemJar()
	session := newJWTSession(jar)
	session.SetPrincipalID(uuid.New())

	other := auth.NewJWTSession(jar, []byte("another-signing-key-entirely!!!!"), auth.DefaultSettings())
	_, ok := other.PrincipalID()
	assert.False(t, ok)
}

func TestJWTSessionGarbageCookie(t *testing.T) {
	jar := newMemJar()
	jar.values[auth.DefaultSessionCookieName] = "not-a-jwt"

	session := newJWTSession(jar)
	_, ok := session.PrincipalID()
	assert.False(t, ok)
}

func TestJWTSessionClearingLastValueDeletesCookie(t *testing.T) {
	jar := newMemJar()
	session := newJWTSession(jar)

	id := uuid.New()
	session.SetPrincipalID(id)
	session.ClearPrincipalID()

	assert.Contains(t, jar.deleted, auth.DefaultSessionCookieName)
	_, ok := jar.Get(auth.DefaultSessionCookieName)
	assert.False(t, ok)
}

func TestJWTSessionClearReturnToKeepsPrincipal(t *testing.T) {
	jar := newMemJar()
	session := newJWTSession(jar)

	id := uuid.New()
	session.SetPrincipalID(id)
	session.SetReturnTo("/somewhere")
	session.ClearReturnTo()

	reloaded := newJWTSession(jar)

	gotID, ok := reloaded.PrincipalID()
	require.True(t, ok)
	assert.Equal(t, id, gotID)

	_, ok = reloaded.ReturnTo()
	assert.False(t, ok)
}

func TestJWTSessionCustomCookieName(t *testing.T) {
	jar := newMemJar()
	session := newJWTSession(jar).WithCookieName("_custom")

	session.SetPrincipalID(uuid.New())

	_, ok := jar.Get("_custom")
	assert.True(t, ok)
	_, ok = jar.Get(auth.DefaultSessionCookieName)
	assert.False(t, ok)
}

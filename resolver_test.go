package auth_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	auth "github.com/ardes/authenticated-system"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type resolverFixture struct {
	store   *MockPrincipalStore
	session *memSession
	jar     *memJar
	headers headerMap
	sink    *capturingSink
	creds   *auth.Credentials
	issuer  *auth.TokenIssuer
	now     time.Time
}

func newResolverFixture() *resolverFixture {
	settings := auth.DefaultSettings()
	store := &MockPrincipalStore{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	return &resolverFixture{
		store:   store,
		session: &memSession{},
		jar:     newMemJar(),
		headers: headerMap{},
		sink:    &capturingSink{},
		creds:   auth.NewCredentials(settings),
		issuer:  auth.NewTokenIssuer(store, settings).WithClock(func() time.Time { return now }),
		now:     now,
	}
}

func (f *resolverFixture) resolver() *auth.Resolver {
	return auth.NewResolver(auth.ResolverDeps{
		Store:   f.store,
		Creds:   f.creds,
		Issuer:  f.issuer,
		Session: f.session,
		Cookies: f.jar,
		Headers: f.headers,
		Sink:    f.sink,
	}, auth.DefaultSettings()).WithClock(func() time.Time { return f.now })
}

// activatedPrincipal builds a principal that can pass password authentication.
func (f *resolverFixture) activatedPrincipal(email, password string) *auth.Principal {
	p := &auth.Principal{ID: uuid.New(), Email: email}
	if err := f.creds.Apply(p, auth.CredentialChange{
		Password: password, Confirmation: password,
	}, f.now); err != nil {
		panic(err)
	}
	f.creds.Activate(p, f.now)
	return p
}

func basicAuthValue(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func TestCurrentAnonymousWhenNoSignals(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture()
	r := f.resolver()

	p, err := r.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)

	loggedIn, err := r.LoggedIn(ctx)
	require.NoError(t, err)
	assert.False(t, loggedIn)

	f.store.AssertExpectations(t)
}

func TestCurrentFromSession(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture()

	p := &auth.Principal{ID: uuid.New(), Email: "pepe.rone@example.com"}
	f.session.SetPrincipalID(p.ID)
	f.store.On("FindByID", ctx, p.ID).Return(p, nil).Once()

	r := f.resolver()
	got, err := r.Current(ctx)
	require.NoError(t, err)
	assert.Same(t, p, got)

	// memoized: a second call never touches the store
	got, err = r.Current(ctx)
	require.NoError(t, err)
	assert.Same(t, p, got)
	f.store.AssertExpectations(t)
}

func TestCurrentFromBasicAuth(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture()

	p := f.activatedPrincipal("pepe.rone@example.com", "sekrit")
	f.headers["Authorization"] = basicAuthValue("pepe.rone@example.com", "sekrit")
	f.store.On("FindByEmail", ctx, "pepe.rone@example.com").Return(p, nil).Once()

	r := f.resolver()
	got, err := r.Current(ctx)
	require.NoError(t, err)
	assert.Same(t, p, got)

	// a basic-auth hit establishes the session
	id, ok := f.session.PrincipalID()
	require.True(t, ok)
	assert.Equal(t, p.ID, id)

	require.Len(t, f.sink.events, 1)
	assert.Equal(t, auth.ActivityEventLoginSuccess, f.sink.events[0].EventType)
	assert.Equal(t, "basic", f.sink.events[0].Metadata["strategy"])
}

func TestCurrentBasicAuthFailureFallsThrough(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture()

	f.headers["Authorization"] = basicAuthValue("pepe.rone@example.com", "wrong")
	f.store.On("FindByEmail", ctx, "pepe.rone@example.com").Return(nil, nil).Once()

	r := f.resolver()
	got, err := r.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.Len(t, f.sink.events, 1)
	assert.Equal(t, auth.ActivityEventLoginFailure, f.sink.events[0].EventType)
}

func TestCurrentSessionOutranksBasicAuth(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture()

	sessionPrincipal := &auth.Principal{ID: uuid.New(), Email: "session@example.com"}
	f.session.SetPrincipalID(sessionPrincipal.ID)
	f.headers["Authorization"] = basicAuthValue("other@example.com", "sekrit")

	f.store.On("FindByID", ctx, sessionPrincipal.ID).Return(sessionPrincipal, nil).Once()

	r := f.resolver()
	got, err := r.Current(ctx)
	require.NoError(t, err)
	assert.Same(t, sessionPrincipal, got)
	f.store.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
}

func TestCurrentFromRememberCookieRotates(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture()

	p := f.activatedPrincipal("pepe.rone@example.com", "sekrit")
	oldToken := "remember-token-value"
	oldExpiry := f.now.Add(time.Hour)
	p.RememberToken = &oldToken
	p.RememberTokenExpiresAt = &oldExpiry

	f.jar.values[auth.DefaultRememberCookieName] = oldToken
	f.store.On("FindByRememberToken", ctx, oldToken).Return(p, nil).Once()
	f.store.On("Save", ctx, p).Return(nil).Once()

	r := f.resolver()
	got, err := r.Current(ctx)
	require.NoError(t, err)
	assert.Same(t, p, got)

	// rotation: a fresh token with a full window, and a refreshed cookie
	require.NotNil(t, p.RememberToken)
	assert.NotEqual(t, oldToken, *p.RememberToken)
	assert.Equal(t, f.now.Add(f.issuer.RememberDuration()), *p.RememberTokenExpiresAt)

	cookie, ok := f.jar.lastSet(auth.DefaultRememberCookieName)
	require.True(t, ok)
	assert.Equal(t, *p.RememberToken, cookie.Value)
	assert.Equal(t, *p.RememberTokenExpiresAt, cookie.Expires)

	require.Len(t, f.sink.events, 1)
	assert.Equal(t, auth.ActivityEventRememberRotation, f.sink.events[0].EventType)

	f.store.AssertExpectations(t)
}

func TestCurrentStaleRememberCookieIsAnonymous(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture()

	p := f.activatedPrincipal("pepe.rone@example.com", "sekrit")
	token := "expired-token"
	expiry := f.now.Add(-time.Minute)
	p.RememberToken = &token
	p.RememberTokenExpiresAt = &expiry

	f.jar.values[auth.DefaultRememberCookieName] = token
	f.store.On("FindByRememberToken", ctx, token).Return(p, nil).Once()

	r := f.resolver()
	got, err := r.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "expired token reads as forgotten")
	f.store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCurrentAnonymousIsMemoized(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture()

	f.jar.values[auth.DefaultRememberCookieName] = "unknown-token"
	f.store.On("FindByRememberToken", ctx, "unknown-token").Return(nil, nil).Once()

	r := f.resolver()

	for i := 0; i < 3; i++ {
		got, err := r.Current(ctx)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	f.store.AssertExpectations(t)
}

func TestCurrentStoreErrorIsNotMemoized(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture()

	id := uuid.New()
	f.session.SetPrincipalID(id)
	boom := errors.New("store down")
	f.store.On("FindByID", ctx, id).Return(nil, boom).Twice()

	r := f.resolver()

	_, err := r.Current(ctx)
	require.ErrorIs(t, err, boom)

	// the failure left the cache uncomputed, so resolution retries
	_, err = r.Current(ctx)
	require.ErrorIs(t, err, boom)
	f.store.AssertExpectations(t)
}

func TestSetCurrent(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture()
	r := f.resolver()

	p := &auth.Principal{ID: uuid.New(), Email: "pepe.rone@example.com"}
	r.SetCurrent(p)

	id, ok := f.session.PrincipalID()
	require.True(t, ok)
	assert.Equal(t, p.ID, id)

	got, err := r.Current(ctx)
	require.NoError(t, err)
	assert.Same(t, p, got)

	r.SetCurrent(nil)
	_, ok = f.session.PrincipalID()
	assert.False(t, ok)

	got, err = r.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRecognizedFromLogin(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture()

	p := &auth.Principal{ID: uuid.New(), Email: "pepe.rone@example.com"}
	f.session.SetPrincipalID(p.ID)
	f.store.On("FindByID", ctx, p.ID).Return(p, nil).Once()

	r := f.resolver()
	got, err := r.Recognized(ctx)
	require.NoError(t, err)
	assert.Same(t, p, got)
}

func TestRecognizedFromCookieWithoutLogin(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture()

	p := &auth.Principal{ID: uuid.New(), Email: "pepe.rone@example.com", RecognitionToken: "recognition-value"}
	f.jar.values[auth.DefaultRecognitionCookieName] = "recognition-value"
	f.store.On("FindByRecognitionToken", ctx, "recognition-value").Return(p, nil).Once()

	r := f.resolver()

	// still anonymous for authentication purposes
	current, err := r.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	got, err := r.Recognized(ctx)
	require.NoError(t, err)
	assert.Same(t, p, got)

	recognized, err := r.IsRecognized(ctx)
	require.NoError(t, err)
	assert.True(t, recognized)

	// memoized
	_, err = r.Recognized(ctx)
	require.NoError(t, err)
	f.store.AssertExpectations(t)
}

func TestRecognizedAnonymous(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture()
	r := f.resolver()

	got, err := r.Recognized(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	recognized, err := r.IsRecognized(ctx)
	require.NoError(t, err)
	assert.False(t, recognized)
}

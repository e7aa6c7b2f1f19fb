package auth_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	auth "github.com/ardes/authenticated-system"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newRouteGuard(t *testing.T) (*auth.RouteGuard, auth.RepositoryManager) {
	t.Helper()
	repo := newTestRepo(t)
	guard := auth.NewRouteGuard(repo, auth.DefaultSettings(), sessionSigningKey)
	return guard, repo
}

// sessionCookieFor signs a session cookie naming the given principal, the
// same way a login handler would.
func sessionCookieFor(t *testing.T, record *auth.Principal) string {
	t.Helper()
	jar := newMemJar()
	auth.NewJWTSession(jar, sessionSigningKey, auth.DefaultSettings()).SetPrincipalID(record.ID)

	value, ok := jar.Get(auth.DefaultSessionCookieName)
	require.True(t, ok)
	return value
}

func TestRouteGuardCachesResolverPerRequest(t *testing.T) {
	guard, _ := newRouteGuard(t)
	ctx := newMockContext()

	first := guard.ResolverFor(ctx)
	second := guard.ResolverFor(ctx)

	require.NotNil(t, first)
	assert.Same(t, first, second)
}

func TestRouteGuardCurrentPrincipalFromSessionCookie(t *testing.T) {
	guard, repo := newRouteGuard(t)

	record, err := repo.Principals().Register(context.Background(), &auth.Principal{
		Email: "pepe.rone@example.com",
	})
	require.NoError(t, err)

	ctx := newMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.CookiesM[auth.DefaultSessionCookieName] = sessionCookieFor(t, record)

	current, err := guard.CurrentPrincipal(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, record.ID, current.ID)
	assert.Equal(t, "pepe.rone@example.com", current.Email)

	ctx.AssertExpectations(t)
}

func TestRouteGuardCurrentPrincipalAnonymous(t *testing.T) {
	guard, _ := newRouteGuard(t)

	ctx := newMockContext()
	ctx.On("Context").Return(context.Background())

	current, err := guard.CurrentPrincipal(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestRequireAuthenticatedChallengesMachineClients(t *testing.T) {
	guard, _ := newRouteGuard(t)

	ctx := newMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("SetHeader", "WWW-Authenticate", `Basic realm="Web Password"`).Return()
	ctx.On("Status", http.StatusUnauthorized).Return()
	ctx.On("SendString", "Could not authenticate you").Return(nil)

	handler := guard.RequireAuthenticated()(func(c router.Context) error { return nil })

	err := handler(ctx)
	require.NoError(t, err)
	assert.False(t, ctx.NextCalled)

	ctx.AssertExpectations(t)
}

func TestRequireAuthenticatedPassesPrincipalDownstream(t *testing.T) {
	guard, repo := newRouteGuard(t)

	record, err := repo.Principals().Register(context.Background(), &auth.Principal{
		Email: "pepe.rone@example.com",
	})
	require.NoError(t, err)

	ctx := newMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.CookiesM[auth.DefaultSessionCookieName] = sessionCookieFor(t, record)
	ctx.On("SetContext", mock.MatchedBy(func(c context.Context) bool {
		p, ok := auth.FromContext(c)
		return ok && p != nil && p.ID == record.ID
	})).Return()

	handler := guard.RequireAuthenticated()(func(c router.Context) error { return nil })

	require.NoError(t, handler(ctx))
	assert.True(t, ctx.NextCalled)

	ctx.AssertExpectations(t)
}

func TestRequireAuthenticatedUsesConfiguredDeniedHandler(t *testing.T) {
	guard, _ := newRouteGuard(t)
	settings := auth.DefaultSettings()

	var gotMessage, gotRedirect string
	guard.AccessDeniedHandler = func(c router.Context, message, redirect string) error {
		gotMessage = message
		gotRedirect = redirect
		return nil
	}

	ctx := newMockContext()
	ctx.On("Context").Return(context.Background())

	handler := guard.RequireAuthenticated()(func(c router.Context) error { return nil })

	require.NoError(t, handler(ctx))
	assert.False(t, ctx.NextCalled)
	assert.Equal(t, settings.GetAccessDeniedMessage(), gotMessage)
	assert.Equal(t, settings.GetAccessDeniedRedirect(), gotRedirect)
}

func TestRequireRecognizedAllowsRecognitionCookie(t *testing.T) {
	guard, repo := newRouteGuard(t)

	record, err := repo.Principals().Register(context.Background(), &auth.Principal{
		Email: "pepe.rone@example.com",
	})
	require.NoError(t, err)
	require.NotEmpty(t, record.RecognitionToken)

	ctx := newMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.CookiesM[auth.DefaultRecognitionCookieName] = record.RecognitionToken

	handler := guard.RequireRecognized()(func(c router.Context) error { return nil })

	require.NoError(t, handler(ctx))
	assert.True(t, ctx.NextCalled)
}

func TestRequireRecognizedDeniesUnknownDevice(t *testing.T) {
	guard, _ := newRouteGuard(t)

	denied := false
	guard.AccessDeniedHandler = func(c router.Context, message, redirect string) error {
		denied = true
		return nil
	}

	ctx := newMockContext()
	ctx.On("Context").Return(context.Background())

	handler := guard.RequireRecognized()(func(c router.Context) error { return nil })

	require.NoError(t, handler(ctx))
	assert.True(t, denied)
	assert.False(t, ctx.NextCalled)
}

func TestResolverSetCurrentWritesSessionCookie(t *testing.T) {
	guard, repo := newRouteGuard(t)

	record, err := repo.Principals().Register(context.Background(), &auth.Principal{
		Email: "pepe.rone@example.com",
	})
	require.NoError(t, err)

	ctx := newMockContext()
	ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == auth.DefaultSessionCookieName &&
			c.Value != "" &&
			c.HTTPOnly && c.Secure && c.SameSite == "Lax"
	})).Return()
	ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == auth.DefaultSessionCookieName &&
			c.Value == "" &&
			c.Expires.Before(time.Now())
	})).Return()

	resolver := guard.ResolverFor(ctx)
	resolver.SetCurrent(record)
	resolver.SetCurrent(nil)

	ctx.AssertExpectations(t)
}

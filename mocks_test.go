package auth_test

import (
	"context"

	auth "github.com/ardes/authenticated-system"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockPrincipalStore implements auth.PrincipalStore
type MockPrincipalStore struct {
	mock.Mock
}

func principalReturn(args mock.Arguments) (*auth.Principal, error) {
	p, _ := args.Get(0).(*auth.Principal)
	return p, args.Error(1)
}

func (m *MockPrincipalStore) FindByID(ctx context.Context, id uuid.UUID) (*auth.Principal, error) {
	return principalReturn(m.Called(ctx, id))
}

func (m *MockPrincipalStore) FindByEmail(ctx context.Context, email string) (*auth.Principal, error) {
	return principalReturn(m.Called(ctx, email))
}

func (m *MockPrincipalStore) FindByRememberToken(ctx context.Context, token string) (*auth.Principal, error) {
	return principalReturn(m.Called(ctx, token))
}

func (m *MockPrincipalStore) FindByRecognitionToken(ctx context.Context, token string) (*auth.Principal, error) {
	return principalReturn(m.Called(ctx, token))
}

func (m *MockPrincipalStore) Save(ctx context.Context, p *auth.Principal) error {
	return m.Called(ctx, p).Error(0)
}

// memSession is an in-memory auth.SessionStore
type memSession struct {
	id       *uuid.UUID
	returnTo *string
}

func (s *memSession) PrincipalID() (uuid.UUID, bool) {
	if s.id == nil {
		return uuid.Nil, false
	}
	return *s.id, true
}

func (s *memSession) SetPrincipalID(id uuid.UUID) { s.id = &id }
func (s *memSession) ClearPrincipalID()           { s.id = nil }

func (s *memSession) ReturnTo() (string, bool) {
	if s.returnTo == nil {
		return "", false
	}
	return *s.returnTo, true
}

func (s *memSession) SetReturnTo(path string) { s.returnTo = &path }
func (s *memSession) ClearReturnTo()          { s.returnTo = nil }

// memJar is an in-memory auth.CookieJar that records writes
type memJar struct {
	values  map[string]string
	setCookies []auth.Cookie
	deleted []string
}

func newMemJar() *memJar {
	return &memJar{values: map[string]string{}}
}

func (j *memJar) Get(name string) (string, bool) {
	value, ok := j.values[name]
	return value, ok
}

func (j *memJar) Set(c auth.Cookie) {
	j.values[c.Name] = c.Value
	j.setCookies = append(j.setCookies, c)
}

func (j *memJar) Delete(name string) {
	delete(j.values, name)
	j.deleted = append(j.deleted, name)
}

func (j *memJar) lastSet(name string) (auth.Cookie, bool) {
	for i := len(j.setCookies) - 1; i >= 0; i-- {
		if j.setCookies[i].Name == name {
			return j.setCookies[i], true
		}
	}
	return auth.Cookie{}, false
}

// headerMap is a map-backed auth.HeaderSource
type headerMap map[string]string

func (h headerMap) Get(name string) string { return h[name] }

// capturingSink collects activity events
type capturingSink struct {
	events []auth.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt auth.ActivityEvent) error {
	c.events = append(c.events, evt)
	return nil
}

// newMockContext builds a router.MockContext with the expectation every
// handler path shares: locals writes go through mock.Called before landing
// in LocalsMock, so a catch-all keeps resolver caching and flash staging
// from panicking mid-test.
func newMockContext() *router.MockContext {
	ctx := router.NewMockContext()
	ctx.On("Locals", mock.Anything, mock.Anything).Return(nil).Maybe()
	return ctx
}

package services

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"darkchat/identity"
	"darkchat/models"
	"darkchat/store"
)

func newSessionManager(t *testing.T) (*SessionManager, store.Store) {
	t.Helper()
	s := newTestStore(t, newTestClock())
	client := identity.NewClient(identity.NewLocalProvider(s))
	return NewSessionManager(client, newProfiles(s), "darkchat.app"), s
}

func TestRegisterCreatesProfile(t *testing.T) {
	ctx := context.Background()
	m, s := newSessionManager(t)

	session, err := m.Register(ctx, "Alice", "Alice A", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", session.Profile.Username)
	assert.Equal(t, "Alice A", session.Profile.DisplayName)
	assert.Equal(t, "alice@darkchat.app", session.Identity.LoginKey)
	assert.Equal(t, "https://example.com/default.png", session.Profile.Avatar)
	assert.Equal(t, "hello Alice A", session.Profile.Bio)
	assert.False(t, session.Profile.IsGuest)
	assert.Zero(t, session.Profile.PostsCount)

	current := m.Current()
	require.NotNil(t, current)
	assert.Equal(t, session.Identity.UID, current.UID)

	doc, err := s.Get(ctx, models.UserRef(session.Identity.UID))
	require.NoError(t, err)
	assert.False(t, store.Time(doc.Data, "createdAt").IsZero())
}

func TestRegisterDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	m, s := newSessionManager(t)

	_, err := m.Register(ctx, "abc", "First", "secret")
	require.NoError(t, err)

	_, err = m.Register(ctx, "ABC", "Second", "other")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateUsername)
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "اسم المستخدم مستخدم بالفعل", authErr.Message)

	profiles, err := s.Query(ctx, store.Collection(models.UsersCollection).Where("username", store.Equal, "abc"))
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
	assert.Equal(t, "First", store.String(profiles[0].Data, "displayName"))
}

func TestSignInDoesNotOverwriteProfile(t *testing.T) {
	ctx := context.Background()
	m, _ := newSessionManager(t)

	registered, err := m.Register(ctx, "bob", "Bob", "secret")
	require.NoError(t, err)
	name := "Robert"
	_, err = m.profiles.Update(ctx, registered.Identity.UID, ProfileUpdate{DisplayName: &name})
	require.NoError(t, err)
	require.NoError(t, m.SignOut(ctx))
	assert.Nil(t, m.Current())

	_, err = m.SignIn(ctx, "bob", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Nil(t, m.Current())

	session, err := m.SignIn(ctx, "BOB", "secret")
	require.NoError(t, err)
	assert.Equal(t, registered.Identity.UID, session.Identity.UID)
	assert.Equal(t, "Robert", session.Profile.DisplayName)
}

func TestSignInGuest(t *testing.T) {
	ctx := context.Background()
	m, _ := newSessionManager(t)

	session, err := m.SignInGuest(ctx)
	require.NoError(t, err)
	assert.True(t, session.Identity.Anonymous)
	assert.True(t, session.Profile.IsGuest)
	assert.Regexp(t, regexp.MustCompile(`^Anonymous\d{6}$`), session.Profile.DisplayName)
	assert.Regexp(t, regexp.MustCompile(`^anonymous\d{6}$`), session.Profile.Username)
}

func TestObserveForcesSignOutWithoutProfile(t *testing.T) {
	ctx := context.Background()
	m, _ := newSessionManager(t)

	var mu sync.Mutex
	var seen []*Session
	stop := m.Observe(func(s *Session) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	defer stop()

	// учетная запись без профиля
	id, err := m.client.Provider().CreateIdentity(ctx, "ghost@darkchat.app", "secret")
	require.NoError(t, err)
	m.client.Establish(id)

	// начальное состояние и один nil после принудительного выхода
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Nil(t, seen[0])
	assert.Nil(t, seen[1])
	assert.Nil(t, m.Current())
}

func TestObserveReportsProfile(t *testing.T) {
	ctx := context.Background()
	m, _ := newSessionManager(t)

	var mu sync.Mutex
	var seen []*Session
	stop := m.Observe(func(s *Session) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	defer stop()

	_, err := m.Register(ctx, "carol", "Carol", "secret")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Nil(t, seen[0])
	require.NotNil(t, seen[1])
	assert.Equal(t, "carol", seen[1].Profile.Username)
}

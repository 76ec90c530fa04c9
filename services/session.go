package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"darkchat/identity"
	"darkchat/models"
)

// Session - учетная запись вместе с профилем
type Session struct {
	Identity identity.Identity  `json:"identity"`
	Profile  models.UserProfile `json:"profile"`
}

// SessionManager связывает учетную запись провайдера с профилем.
// Учетная запись без профиля считается испорченной: сессия завершается.
type SessionManager struct {
	base
	client   *identity.Client
	profiles *ProfileService
	domain   string
}

func NewSessionManager(client *identity.Client, profiles *ProfileService, domain string, opts ...Option) *SessionManager {
	return &SessionManager{
		base:     newBase(profiles.store, opts),
		client:   client,
		profiles: profiles,
		domain:   domain,
	}
}

// Observe сообщает текущую сессию и каждое ее изменение; nil - не вошли.
// Возвращает функцию отписки.
func (m *SessionManager) Observe(fn func(*Session)) func() {
	return m.client.Observe(func(id *identity.Identity) {
		if id == nil {
			fn(nil)
			return
		}
		session, err := m.resolve(context.Background(), *id)
		if err != nil {
			m.logger.Warn("identity without profile, signing out", zap.String("uid", id.UID), zap.Error(err))
			// nil придет наблюдателю из очереди клиента после SignOut
			if err := m.client.SignOut(context.Background()); err != nil {
				m.logger.Warn("forced sign out failed", zap.String("uid", id.UID), zap.Error(err))
			}
			return
		}
		fn(session)
	})
}

func (m *SessionManager) resolve(ctx context.Context, id identity.Identity) (*Session, error) {
	profile, err := m.profiles.Get(ctx, id.UID)
	if err != nil {
		return nil, err
	}
	return &Session{Identity: id, Profile: profile}, nil
}

// Current - текущая учетная запись без обращения к хранилищу
func (m *SessionManager) Current() *identity.Identity {
	return m.client.Current()
}

// Register создает учетную запись и профиль. Профиль пишется до того,
// как наблюдатели узнают о новой сессии.
func (m *SessionManager) Register(ctx context.Context, username, displayName, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	displayName = strings.TrimSpace(displayName)
	if username == "" || password == "" {
		return nil, m.authFail(OpRegister, ErrInvalidCredentials)
	}
	if displayName == "" {
		displayName = username
	}

	loginKey := identity.LoginKey(username, m.domain)
	id, err := m.client.Provider().CreateIdentity(ctx, loginKey, password)
	if errors.Is(err, identity.ErrIdentityExists) {
		return nil, m.authFail(OpRegister, ErrDuplicateUsername)
	}
	if err != nil {
		return nil, m.authFail(OpRegister, err)
	}

	profile := m.profiles.NewProfile(id.UID, username, displayName, false)
	profile.Email = loginKey
	if _, err := m.profiles.EnsureProfile(ctx, profile); err != nil {
		return nil, m.authFail(OpRegister, err)
	}
	return m.establish(ctx, OpRegister, id)
}

// SignIn входит по имени пользователя и паролю
func (m *SessionManager) SignIn(ctx context.Context, username, password string) (*Session, error) {
	id, err := m.client.Provider().Authenticate(ctx, identity.LoginKey(username, m.domain), password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		return nil, m.authFail(OpSignIn, ErrInvalidCredentials)
	}
	if err != nil {
		return nil, m.authFail(OpSignIn, err)
	}
	return m.establish(ctx, OpSignIn, id)
}

// SignInGuest создает анонимную учетную запись с именем AnonymousNNNNNN
func (m *SessionManager) SignInGuest(ctx context.Context) (*Session, error) {
	id, err := m.client.Provider().CreateAnonymousIdentity(ctx)
	if err != nil {
		return nil, m.authFail(OpSignInGuest, err)
	}
	name := GuestName()
	profile := m.profiles.NewProfile(id.UID, name, name, true)
	if _, err := m.profiles.EnsureProfile(ctx, profile); err != nil {
		return nil, m.authFail(OpSignInGuest, err)
	}
	return m.establish(ctx, OpSignInGuest, id)
}

// GuestName - Anonymous и шесть случайных цифр
func GuestName() string {
	return fmt.Sprintf("Anonymous%d", gofakeit.Number(100000, 999999))
}

func (m *SessionManager) SignOut(ctx context.Context) error {
	return m.client.SignOut(ctx)
}

func (m *SessionManager) establish(ctx context.Context, op Op, id identity.Identity) (*Session, error) {
	session, err := m.resolve(ctx, id)
	if err != nil {
		_ = m.client.Provider().EndSession(ctx, id)
		return nil, m.authFail(op, err)
	}
	m.client.Establish(id)
	return session, nil
}

func (m *SessionManager) authFail(op Op, err error) error {
	msg := m.texts.Message(op)
	switch {
	case errors.Is(err, ErrDuplicateUsername):
		msg = m.texts.Message(opDuplicate)
	case errors.Is(err, ErrInvalidCredentials):
		msg = m.texts.Message(opCredentials)
	}
	m.logger.Info("authentication failed", zap.String("op", string(op)), zap.Error(err))
	return &AuthError{Op: op, Message: msg, Err: err}
}

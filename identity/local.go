package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"darkchat/store"
)

const (
	identitiesCollection = "identities"
	tokensCollection     = "identity_tokens"
)

// LocalProvider хранит учетные записи в том же хранилище документов.
// Пароли - argon2id, токены - случайные hex-строки.
type LocalProvider struct {
	store store.Store
}

func NewLocalProvider(s store.Store) *LocalProvider {
	return &LocalProvider{store: s}
}

func hashSecret(secret string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(secret), salt, 1, 64*1024, 4, 32)
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(hash), nil
}

func checkSecret(secret, stored string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 2 {
		return false
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	hash := argon2.IDKey([]byte(secret), salt, 1, 64*1024, 4, 32)
	return subtle.ConstantTimeCompare(hash, want) == 1
}

func newToken() (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(tokenBytes), nil
}

func (p *LocalProvider) issueToken(ctx context.Context, id Identity) (Identity, error) {
	token, err := newToken()
	if err != nil {
		return Identity{}, err
	}
	err = p.store.Create(ctx, store.Collection(tokensCollection).Doc(token), map[string]any{
		"uid":       id.UID,
		"loginKey":  id.LoginKey,
		"anonymous": id.Anonymous,
		"createdAt": store.ServerTimestamp,
	})
	if err != nil {
		return Identity{}, fmt.Errorf("failed to store token: %w", err)
	}
	id.Token = token
	return id, nil
}

func (p *LocalProvider) CreateIdentity(ctx context.Context, loginKey, secret string) (Identity, error) {
	if loginKey == "" || secret == "" {
		return Identity{}, ErrInvalidCredentials
	}
	hash, err := hashSecret(secret)
	if err != nil {
		return Identity{}, err
	}
	id := Identity{UID: store.NewID(), LoginKey: loginKey}
	err = p.store.Create(ctx, store.Collection(identitiesCollection).Doc(loginKey), map[string]any{
		"uid":          id.UID,
		"loginKey":     loginKey,
		"passwordHash": hash,
		"anonymous":    false,
		"createdAt":    store.ServerTimestamp,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return Identity{}, ErrIdentityExists
	}
	if err != nil {
		return Identity{}, fmt.Errorf("failed to create identity: %w", err)
	}
	return p.issueToken(ctx, id)
}

func (p *LocalProvider) Authenticate(ctx context.Context, loginKey, secret string) (Identity, error) {
	doc, err := p.store.Get(ctx, store.Collection(identitiesCollection).Doc(loginKey))
	if errors.Is(err, store.ErrNotFound) {
		return Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return Identity{}, fmt.Errorf("failed to load identity: %w", err)
	}
	if !checkSecret(secret, store.String(doc.Data, "passwordHash")) {
		return Identity{}, ErrInvalidCredentials
	}
	return p.issueToken(ctx, Identity{UID: store.String(doc.Data, "uid"), LoginKey: loginKey})
}

func (p *LocalProvider) CreateAnonymousIdentity(ctx context.Context) (Identity, error) {
	return p.issueToken(ctx, Identity{UID: store.NewID(), Anonymous: true})
}

func (p *LocalProvider) EndSession(ctx context.Context, id Identity) error {
	if id.Token == "" {
		return nil
	}
	if err := p.store.Delete(ctx, store.Collection(tokensCollection).Doc(id.Token)); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

func (p *LocalProvider) VerifyToken(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	doc, err := p.store.Get(ctx, store.Collection(tokensCollection).Doc(token))
	if errors.Is(err, store.ErrNotFound) {
		return Identity{}, ErrInvalidToken
	}
	if err != nil {
		return Identity{}, fmt.Errorf("failed to verify token: %w", err)
	}
	return Identity{
		UID:       store.String(doc.Data, "uid"),
		LoginKey:  store.String(doc.Data, "loginKey"),
		Anonymous: store.Bool(doc.Data, "anonymous"),
		Token:     token,
	}, nil
}

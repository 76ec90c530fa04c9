// Package identity - провайдеры учетных записей и состояние сессии клиента
package identity

import (
	"context"
	"strings"
)

// Identity - аутентифицированная учетная запись
type Identity struct {
	UID       string `json:"uid"`
	LoginKey  string `json:"loginKey,omitempty"`
	Anonymous bool   `json:"anonymous"`
	// Token - bearer-токен сессии
	Token string `json:"token,omitempty"`
}

// Provider - внешний сервис учетных записей
type Provider interface {
	CreateIdentity(ctx context.Context, loginKey, secret string) (Identity, error)
	Authenticate(ctx context.Context, loginKey, secret string) (Identity, error)
	CreateAnonymousIdentity(ctx context.Context) (Identity, error)
	EndSession(ctx context.Context, id Identity) error
	VerifyToken(ctx context.Context, token string) (Identity, error)
}

// LoginKey собирает ключ входа из имени пользователя: alice@darkchat.app
func LoginKey(username, domain string) string {
	return strings.ToLower(strings.TrimSpace(username)) + "@" + domain
}

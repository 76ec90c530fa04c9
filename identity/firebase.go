package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
)

// DefaultIdentityToolkitURL - REST API входа по паролю Firebase Auth
const DefaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"

// FirebaseProvider создает учетные записи через Admin SDK, проверяет
// ID-токены через Admin SDK, а вход по паролю делает через REST Identity Toolkit
// (в Admin SDK его нет).
type FirebaseProvider struct {
	auth       *auth.Client
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type FirebaseOption func(*FirebaseProvider)

func WithIdentityToolkitURL(url string) FirebaseOption {
	return func(p *FirebaseProvider) {
		p.baseURL = strings.TrimRight(url, "/")
	}
}

func WithHTTPClient(client *http.Client) FirebaseOption {
	return func(p *FirebaseProvider) {
		p.httpClient = client
	}
}

func NewFirebaseProvider(authClient *auth.Client, apiKey string, opts ...FirebaseOption) *FirebaseProvider {
	p := &FirebaseProvider{
		auth:       authClient,
		apiKey:     apiKey,
		baseURL:    DefaultIdentityToolkitURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type signInResponse struct {
	LocalID string `json:"localId"`
	IDToken string `json:"idToken"`
	Email   string `json:"email"`
}

type toolkitError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *FirebaseProvider) call(ctx context.Context, method string, body any) (signInResponse, error) {
	var out signInResponse
	payload, err := json.Marshal(body)
	if err != nil {
		return out, err
	}
	url := fmt.Sprintf("%s/accounts:%s?key=%s", p.baseURL, method, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("identity toolkit %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var te toolkitError
		_ = json.NewDecoder(resp.Body).Decode(&te)
		return out, toolkitErr(method, resp.StatusCode, te.Error.Message)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return out, nil
}

func toolkitErr(method string, status int, message string) error {
	// сообщения вида "INVALID_PASSWORD" или "TOO_MANY_ATTEMPTS_TRY_LATER : ..."
	code, _, _ := strings.Cut(message, " ")
	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED", "INVALID_EMAIL":
		return ErrInvalidCredentials
	case "EMAIL_EXISTS":
		return ErrIdentityExists
	}
	return fmt.Errorf("identity toolkit %s failed with status %d: %s", method, status, message)
}

func (p *FirebaseProvider) CreateIdentity(ctx context.Context, loginKey, secret string) (Identity, error) {
	params := (&auth.UserToCreate{}).Email(loginKey).Password(secret)
	if _, err := p.auth.CreateUser(ctx, params); err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return Identity{}, ErrIdentityExists
		}
		return Identity{}, fmt.Errorf("failed to create firebase user: %w", err)
	}
	return p.Authenticate(ctx, loginKey, secret)
}

func (p *FirebaseProvider) Authenticate(ctx context.Context, loginKey, secret string) (Identity, error) {
	resp, err := p.call(ctx, "signInWithPassword", map[string]any{
		"email":             loginKey,
		"password":          secret,
		"returnSecureToken": true,
	})
	if err != nil {
		return Identity{}, err
	}
	return Identity{UID: resp.LocalID, LoginKey: resp.Email, Token: resp.IDToken}, nil
}

func (p *FirebaseProvider) CreateAnonymousIdentity(ctx context.Context) (Identity, error) {
	resp, err := p.call(ctx, "signUp", map[string]any{"returnSecureToken": true})
	if err != nil {
		return Identity{}, err
	}
	return Identity{UID: resp.LocalID, Anonymous: true, Token: resp.IDToken}, nil
}

// EndSession отзывает refresh-токены пользователя
func (p *FirebaseProvider) EndSession(ctx context.Context, id Identity) error {
	if p.auth == nil || id.UID == "" {
		return nil
	}
	if err := p.auth.RevokeRefreshTokens(ctx, id.UID); err != nil {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}
	return nil
}

func (p *FirebaseProvider) VerifyToken(ctx context.Context, token string) (Identity, error) {
	if p.auth == nil {
		return Identity{}, errors.New("firebase auth client is not configured")
	}
	tok, err := p.auth.VerifyIDToken(ctx, token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id := Identity{
		UID:       tok.UID,
		Anonymous: tok.Firebase.SignInProvider == "anonymous",
		Token:     token,
	}
	if email, ok := tok.Claims["email"].(string); ok {
		id.LoginKey = email
	}
	return id, nil
}

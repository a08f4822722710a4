// Package auth provides the admin login and bearer token support.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrForbidden is returned when the credentials or token are not accepted.
var ErrForbidden = errors.New("attempted action is not allowed")

// ctxKey represents the type of value for the context key.
type ctxKey int

// key is used to store/retrieve the admin from a context.Context.
const key ctxKey = 1

// Config represents the information required to initialize auth.
type Config struct {
	Username string
	Password string
	TokenTTL time.Duration
}

// session tracks who a token was issued to and when it expires.
type session struct {
	username string
	expires  time.Time
}

// Auth is used to authenticate admins and validate the tokens they
// are issued.
type Auth struct {
	username string
	password string
	ttl      time.Duration

	mu       sync.Mutex
	sessions map[string]session
}

// New creates an Auth to support authentication. An empty password disables
// admin access altogether.
func New(cfg Config) *Auth {
	return &Auth{
		username: cfg.Username,
		password: cfg.Password,
		ttl:      cfg.TokenTTL,
		sessions: make(map[string]session),
	}
}

// Login checks the credentials and issues a new bearer token.
func (a *Auth) Login(username string, password string) (string, error) {
	if a.password == "" {
		return "", ErrForbidden
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	if !userOK || !passOK {
		return "", ErrForbidden
	}

	token := uuid.NewString()

	a.mu.Lock()
	defer a.mu.Unlock()

	s := session{username: username}
	if a.ttl > 0 {
		s.expires = time.Now().Add(a.ttl)
	}
	a.sessions[token] = s

	return token, nil
}

// Validate returns the admin the token was issued to.
func (a *Auth) Validate(token string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, exists := a.sessions[token]
	if !exists {
		return "", ErrForbidden
	}

	if !s.expires.IsZero() && time.Now().After(s.expires) {
		delete(a.sessions, token)
		return "", ErrForbidden
	}

	return s.username, nil
}

// Logout removes the token.
func (a *Auth) Logout(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.sessions, token)
}

// =============================================================================

// SetAdmin stores the admin name in the context.
func SetAdmin(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, key, username)
}

// GetAdmin returns the admin name from the context.
func GetAdmin(ctx context.Context) string {
	v, ok := ctx.Value(key).(string)
	if !ok {
		return ""
	}
	return v
}

package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"ms-registration/internal/config"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSessionRevoked     = errors.New("session expired or revoked")
)

type SessionStore interface {
	Save(ctx context.Context, jti string, session Session) error
	Get(ctx context.Context, jti string) (*Session, error)
	Revoke(ctx context.Context, jti string) error
}

// Authenticator checks the single shared admin credential and manages the
// sessions behind issued tokens.
type Authenticator struct {
	Tokens   *TokenIssuer
	Sessions SessionStore
	Logger   *logger.Logger

	username     string
	passwordHash []byte
}

// NewAuthenticator prefers ADMIN_PASSWORD_HASH and hashes ADMIN_PASSWORD
// otherwise. Without a JWT secret a random one is used, so tokens do not
// survive a restart.
func NewAuthenticator(cfg config.AdminConfig, sessions SessionStore, log *logger.Logger) (*Authenticator, error) {
	a := &Authenticator{Sessions: sessions, Logger: log, username: cfg.Username}

	switch {
	case cfg.PasswordHash != "":
		if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
			return nil, fmt.Errorf("ADMIN_PASSWORD_HASH is not a bcrypt hash: %w", err)
		}
		a.passwordHash = []byte(cfg.PasswordHash)
	case cfg.Password != "":
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		a.passwordHash = hash
	default:
		log.Warn("AUTH", "No admin password configured, admin login is disabled")
	}

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		log.Warn("AUTH", "ADMIN_JWT_SECRET not set, using an ephemeral signing key")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	a.Tokens = NewTokenIssuer(secret, ttl)
	return a, nil
}

func (a *Authenticator) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	if a.passwordHash == nil || !userOK {
		a.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("user=%q", username))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		a.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("user=%q", username))
		return nil, ErrInvalidCredentials
	}

	token, claims, err := a.Tokens.Issue(username)
	if err != nil {
		return nil, err
	}
	expiresAt := claims.ExpiresAt.Time
	if err := a.Sessions.Save(ctx, claims.ID, Session{Subject: username, ExpiresAt: expiresAt}); err != nil {
		return nil, err
	}

	a.Logger.LogSecurity("LOGIN", fmt.Sprintf("user=%q jti=%s", username, claims.ID))
	return &models.LoginResponse{Token: token, ExpiresAt: expiresAt}, nil
}

// Verify returns the claims of a valid token whose session is still live.
func (a *Authenticator) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims, err := a.Tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	session, err := a.Sessions.Get(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Subject != claims.Subject {
		return nil, ErrSessionRevoked
	}
	return claims, nil
}

func (a *Authenticator) Logout(ctx context.Context, raw string) error {
	claims, err := a.Tokens.Parse(raw)
	if err != nil {
		return err
	}
	if err := a.Sessions.Revoke(ctx, claims.ID); err != nil {
		return err
	}
	a.Logger.LogSecurity("LOGOUT", fmt.Sprintf("user=%q jti=%s", claims.Subject, claims.ID))
	return nil
}

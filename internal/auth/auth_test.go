package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-registration/internal/config"
	"ms-registration/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func newTestAuthenticator(t *testing.T, cfg config.AdminConfig) (*Authenticator, *miniredis.Miniredis) {
	t.Helper()
	client, mr := setupTestRedis(t)
	a, err := NewAuthenticator(cfg, NewRedisSessionStore(client), logger.NewWriterLogger(io.Discard))
	require.NoError(t, err)
	return a, mr
}

func TestLoginVerifyLogout(t *testing.T) {
	a, mr := newTestAuthenticator(t, config.AdminConfig{
		Username:  "admin",
		Password:  "s3cret",
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
	})
	ctx := context.Background()

	resp, err := a.Login(ctx, "admin", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, time.Minute)

	claims, err := a.Verify(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)

	key := SessionKeyPrefix + claims.ID
	assert.True(t, mr.Exists(key))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL(key).Seconds(), 5)

	require.NoError(t, a.Logout(ctx, resp.Token))
	assert.False(t, mr.Exists(key))

	_, err = a.Verify(ctx, resp.Token)
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("right"), bcrypt.MinCost)
	require.NoError(t, err)
	a, _ := newTestAuthenticator(t, config.AdminConfig{Username: "admin", PasswordHash: string(hash)})

	_, err = a.Login(context.Background(), "admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Login(context.Background(), "root", "right")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Login(context.Background(), "admin", "right")
	assert.NoError(t, err)
}

func TestLoginDisabledWithoutPassword(t *testing.T) {
	a, _ := newTestAuthenticator(t, config.AdminConfig{Username: "admin"})
	_, err := a.Login(context.Background(), "admin", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestNewAuthenticatorRejectsMalformedHash(t *testing.T) {
	client, _ := setupTestRedis(t)
	_, err := NewAuthenticator(config.AdminConfig{Username: "admin", PasswordHash: "plain"},
		NewRedisSessionStore(client), logger.NewWriterLogger(io.Discard))
	assert.Error(t, err)
}

func TestParseRejectsForeignAndExpiredTokens(t *testing.T) {
	issuer := NewTokenIssuer([]byte("one"), time.Minute)
	other := NewTokenIssuer([]byte("two"), time.Minute)

	token, _, err := other.Issue("admin")
	require.NoError(t, err)
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, _, err = issuer.Issue("admin")
	require.NoError(t, err)
	issuer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	a, mr := newTestAuthenticator(t, config.AdminConfig{Username: "admin", Password: "pw", JWTSecret: "k"})
	resp, err := a.Login(context.Background(), "admin", "pw")
	require.NoError(t, err)

	handler := Middleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "admin", Admin(r.Context()))
		w.WriteHeader(http.StatusTeapot)
	}))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + resp.Token, http.StatusTeapot},
		{"lowercase scheme", "bearer " + resp.Token, http.StatusTeapot},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}

	mr.Close()
	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSessionStoreWithoutClient(t *testing.T) {
	store := &RedisSessionStore{}
	_, err := store.Get(context.Background(), "x")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrSessionRevoked))
}

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// SessionKeyPrefix prefixes the Redis key holding a live admin session.
const SessionKeyPrefix = "admin_session:"

// Session is the Redis record behind an issued admin token.
type Session struct {
	Subject   string    `json:"subject"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RedisSessionStore keeps one key per issued token so logout can revoke it
// before it expires.
type RedisSessionStore struct {
	Client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{Client: client}
}

func sessionKey(jti string) string {
	return SessionKeyPrefix + jti
}

// Save stores the session until expiresAt.
func (c *RedisSessionStore) Save(ctx context.Context, jti string, session Session) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", jti)
	}

	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := c.Client.Set(ctx, sessionKey(jti), sessionJSON, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session in Redis: %w", err)
	}
	return nil
}

// Get returns the session for jti, or nil if it was revoked or expired.
func (c *RedisSessionStore) Get(ctx context.Context, jti string) (*Session, error) {
	if c.Client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	sessionJSON, err := c.Client.Get(ctx, sessionKey(jti)).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(sessionJSON), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (c *RedisSessionStore) Revoke(ctx context.Context, jti string) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	if err := c.Client.Del(ctx, sessionKey(jti)).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one access token per client session in Redis.
//
// Keys have the form "<prefix>:tok:<sessionKey>". A positive ttl bounds how
// long an abandoned session keeps its token; zero keeps it until Clear.
type RedisStore struct {
	redis      redis.UniversalClient
	key        string
	ttl        time.Duration
	sessionKey string
}

// NewRedisStore creates a store bound to sessionKey.
func NewRedisStore(client redis.UniversalClient, prefix, sessionKey string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "luxe"
	}
	return &RedisStore{
		redis:      client,
		key:        tokenKey(prefix, sessionKey),
		ttl:        ttl,
		sessionKey: sessionKey,
	}
}

// SessionKey returns the session this store is bound to.
func (s *RedisStore) SessionKey() string {
	return s.sessionKey
}

// Get returns the current token for the bound session.
func (s *RedisStore) Get(ctx context.Context) (string, bool, error) {
	token, err := s.redis.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return token, token != "", nil
}

// Set replaces the token for the bound session.
func (s *RedisStore) Set(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	if err := s.redis.Set(ctx, s.key, token, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Clear deletes the token for the bound session. Missing keys are not an error.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func tokenKey(prefix, sessionKey string) string {
	return prefix + ":tok:" + sessionKey
}

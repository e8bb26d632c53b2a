package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable wraps backend failures of a VerifierStore.
var ErrStoreUnavailable = errors.New("verifier store unavailable")

// VerifierStore keeps code verifiers between the authorize redirect and the
// callback. key identifies the browser session that started the login.
type VerifierStore interface {
	Save(ctx context.Context, key, verifier string, ttl time.Duration) error
	Load(ctx context.Context, key string) (verifier string, ok bool, err error)
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	verifier string
	expires  time.Time
}

// MemoryVerifierStore is an in-process VerifierStore.
type MemoryVerifierStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryVerifierStore() *MemoryVerifierStore {
	return &MemoryVerifierStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryVerifierStore) Save(_ context.Context, key, verifier string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memoryEntry{verifier: verifier}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *MemoryVerifierStore) Load(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.entries, key)
		return "", false, nil
	}
	return e.verifier, true, nil
}

func (s *MemoryVerifierStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// RedisVerifierStore keeps verifiers under <prefix>:pkce:<key> with a TTL.
type RedisVerifierStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisVerifierStore(client redis.UniversalClient, prefix string) *RedisVerifierStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "luxe"
	}
	return &RedisVerifierStore{redis: client, prefix: prefix}
}

func (s *RedisVerifierStore) key(key string) string {
	return s.prefix + ":pkce:" + key
}

func (s *RedisVerifierStore) Save(ctx context.Context, key, verifier string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.key(key), verifier, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisVerifierStore) Load(ctx context.Context, key string) (string, bool, error) {
	v, err := s.redis.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return v, true, nil
}

func (s *RedisVerifierStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

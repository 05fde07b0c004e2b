package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionCache guarda token -> user_id para evitar ir a Postgres en cada request.
// Un miss no implica sesión inválida: la fuente de verdad sigue siendo el repositorio.
type SessionCache interface {
	Store(ctx context.Context, token, userID string, ttl time.Duration) error
	Lookup(ctx context.Context, token string) (string, bool, error)
	Revoke(ctx context.Context, token string) error
}

type memorySessionCache struct {
	mu    sync.Mutex
	items map[string]cachedSession
}

type cachedSession struct {
	userID    string
	expiresAt time.Time
}

func NewMemorySessionCache() SessionCache {
	return &memorySessionCache{
		items: make(map[string]cachedSession),
	}
}

func (s *memorySessionCache) Store(_ context.Context, token, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(token) == "" || ttl <= 0 {
		return nil
	}
	s.items[token] = cachedSession{userID: userID, expiresAt: time.Now().UTC().Add(ttl)}
	return nil
}

func (s *memorySessionCache) Lookup(_ context.Context, token string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[token]
	if !ok {
		return "", false, nil
	}
	if !time.Now().UTC().Before(item.expiresAt) {
		delete(s.items, token)
		return "", false, nil
	}
	return item.userID, true, nil
}

func (s *memorySessionCache) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, token)
	return nil
}

type redisKV interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisSessionCache struct {
	client redisKV
	prefix string
}

func NewRedisSessionCache(client *redis.Client) SessionCache {
	if client == nil {
		return nil
	}
	return &redisSessionCache{
		client: client,
		prefix: "session:",
	}
}

func (s *redisSessionCache) Store(ctx context.Context, token, userID string, ttl time.Duration) error {
	if strings.TrimSpace(token) == "" || ttl <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+token, userID, ttl).Err()
}

func (s *redisSessionCache) Lookup(ctx context.Context, token string) (string, bool, error) {
	if strings.TrimSpace(token) == "" {
		return "", false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	userID, err := s.client.Get(ctx, s.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return userID, true, nil
}

func (s *redisSessionCache) Revoke(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Del(ctx, s.prefix+token).Err()
}

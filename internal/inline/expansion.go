package inline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ExpansionStore remembers which cards are expanded across reloads of
// the same session.
type ExpansionStore interface {
	Expanded(ctx context.Context, key string) (bool, error)
	SetExpanded(ctx context.Context, key string, expanded bool) error
}

// MemoryExpansionStore keeps expansion state for the life of the process.
type MemoryExpansionStore struct {
	mu       sync.RWMutex
	expanded map[string]bool
}

func NewMemoryExpansionStore() *MemoryExpansionStore {
	return &MemoryExpansionStore{expanded: make(map[string]bool)}
}

func (s *MemoryExpansionStore) Expanded(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expanded[key], nil
}

func (s *MemoryExpansionStore) SetExpanded(_ context.Context, key string, expanded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expanded {
		s.expanded[key] = true
	} else {
		delete(s.expanded, key)
	}
	return nil
}

// RedisExpansionStore keeps expansion state in Redis under
// "<prefix>:<session>:<key>". Entries expire after ttl so abandoned
// sessions clean themselves up.
type RedisExpansionStore struct {
	rdb     redis.UniversalClient
	prefix  string
	session string
	ttl     time.Duration
}

func NewRedisExpansionStore(rdb redis.UniversalClient, prefix, session string, ttl time.Duration) *RedisExpansionStore {
	if prefix == "" {
		prefix = "universes:expanded"
	}
	return &RedisExpansionStore{rdb: rdb, prefix: prefix, session: session, ttl: ttl}
}

func (s *RedisExpansionStore) key(key string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, s.session, key)
}

func (s *RedisExpansionStore) Expanded(ctx context.Context, key string) (bool, error) {
	err := s.rdb.Get(ctx, s.key(key)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read expansion state: %w", err)
	}
	return true, nil
}

func (s *RedisExpansionStore) SetExpanded(ctx context.Context, key string, expanded bool) error {
	var err error
	if expanded {
		err = s.rdb.Set(ctx, s.key(key), "1", s.ttl).Err()
	} else {
		err = s.rdb.Del(ctx, s.key(key)).Err()
	}
	if err != nil {
		return fmt.Errorf("write expansion state: %w", err)
	}
	return nil
}

package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// NonceStore remembers partner_call_ids so a replayed envelope is refused
type NonceStore interface {
	// Remember records id for ttl. It returns false if id was already seen.
	Remember(ctx context.Context, id string, ttl time.Duration) (bool, error)
	Close() error
}

// MemoryNonceStore keeps ids in process memory
type MemoryNonceStore struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	now     func() time.Time
	lastGC  time.Time
	gcEvery time.Duration
}

// NewMemoryNonceStore creates an empty in-memory store
func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{
		seen:    make(map[string]time.Time),
		now:     time.Now,
		gcEvery: time.Minute,
	}
}

// Remember implements NonceStore
func (s *MemoryNonceStore) Remember(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastGC) >= s.gcEvery {
		for k, exp := range s.seen {
			if now.After(exp) {
				delete(s.seen, k)
			}
		}
		s.lastGC = now
	}

	if exp, ok := s.seen[id]; ok && !now.After(exp) {
		return false, nil
	}
	s.seen[id] = now.Add(ttl)
	return true, nil
}

// Len returns the number of tracked ids, expired ones included until the next sweep
func (s *MemoryNonceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Close implements NonceStore
func (s *MemoryNonceStore) Close() error {
	return nil
}

// RedisNonceStore shares seen ids between sandbox replicas
type RedisNonceStore struct {
	client *redis.Client
	prefix string
}

// NewRedisNonceStore connects to redisURL and verifies the connection
func NewRedisNonceStore(redisURL string) (*RedisNonceStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedisNonceStoreWithClient(client), nil
}

// NewRedisNonceStoreWithClient wraps an existing client
func NewRedisNonceStoreWithClient(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client, prefix: "pokepay:sandbox:nonce:"}
}

// Remember implements NonceStore with SET NX
func (s *RedisNonceStore) Remember(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	fresh, err := s.client.SetNX(ctx, s.prefix+id, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("nonce check failed: %w", err)
	}
	return fresh, nil
}

// Close implements NonceStore
func (s *RedisNonceStore) Close() error {
	return s.client.Close()
}

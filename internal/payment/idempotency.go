package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultEventTTL = 72 * time.Hour

// IdempotencyStore remembers webhook events that were already applied.
type IdempotencyStore interface {
	// MarkProcessed returns false when eventID was marked before.
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
	// Release forgets eventID so a redelivery is applied again.
	Release(ctx context.Context, eventID string) error
}

type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: "stripe:event:",
		ttl:       ttl,
	}
}

func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+eventID, "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark event processed: %w", err)
	}
	return ok, nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, eventID string) error {
	if err := s.client.Del(ctx, s.keyPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("release event: %w", err)
	}
	return nil
}

// MemoryIdempotencyStore is the single-instance fallback when Redis is not configured.
type MemoryIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}
	return &MemoryIdempotencyStore{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (s *MemoryIdempotencyStore) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, expires := range s.seen {
		if now.After(expires) {
			delete(s.seen, id)
		}
	}

	if _, ok := s.seen[eventID]; ok {
		return false, nil
	}
	s.seen[eventID] = now.Add(s.ttl)
	return true, nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.seen, eventID)
	return nil
}

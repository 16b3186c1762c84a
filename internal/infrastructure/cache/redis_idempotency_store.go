package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sgpp/costrecovery/internal/domain/shared"
)

// RedisIdempotencyStore implements IdempotencyStore using Redis. Batch
// jobs of multiple instances share idempotency state through it, so a
// correction or recovery run re-triggered on another instance still
// detects "already processed this period".
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisIdempotencyStore creates a new Redis-based idempotency store
func NewRedisIdempotencyStore(cfg RedisConfig) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: "batch:idempotency:",
	}, nil
}

// NewRedisIdempotencyStoreWithClient creates a store with an existing
// Redis client, useful for testing or sharing a client across components
func NewRedisIdempotencyStoreWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = "batch:idempotency:"
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed marks a batch invocation key as processed with a TTL.
// Returns true if the key was newly marked, false if it already
// existed. SETNX makes the check-and-set atomic across instances.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark key as processed: %w", err)
	}

	return result, nil
}

// IsProcessed checks if a batch invocation key has been processed
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if key is processed: %w", err)
	}

	return exists > 0, nil
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (s *RedisIdempotencyStore) GetClient() *redis.Client {
	return s.client
}

// Ensure RedisIdempotencyStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)

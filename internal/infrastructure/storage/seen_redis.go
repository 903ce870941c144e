package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"DealScanner/internal/config"
	"DealScanner/internal/ports"
)

// RedisSeenStore keeps the seen-set in a Redis set. SADD is additive, so
// concurrent scanners sharing the key never drop each other's ids.
type RedisSeenStore struct {
	client *redis.Client
	key    string
}

var _ ports.SeenStore = (*RedisSeenStore)(nil)

// NewRedisSeenStore creates the client without contacting the server.
func NewRedisSeenStore(cfg config.RedisConfig) *RedisSeenStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisSeenStore{client: client, key: cfg.Key}
}

// Ping verifies the connection.
func (s *RedisSeenStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}

// Load returns all members of the set.
func (s *RedisSeenStore) Load(ctx context.Context) (map[string]struct{}, error) {
	members, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %s: %w", s.key, err)
	}
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		seen[m] = struct{}{}
	}
	return seen, nil
}

// Save adds every id to the set.
func (s *RedisSeenStore) Save(ctx context.Context, seen map[string]struct{}) error {
	if len(seen) == 0 {
		return nil
	}
	members := make([]interface{}, 0, len(seen))
	for id := range seen {
		members = append(members, id)
	}
	if err := s.client.SAdd(ctx, s.key, members...).Err(); err != nil {
		return fmt.Errorf("redis sadd %s: %w", s.key, err)
	}
	return nil
}

// Close releases the client.
func (s *RedisSeenStore) Close() error {
	return s.client.Close()
}

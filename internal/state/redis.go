package state

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisKeyPrefix is the prefix for per-chat phase keys in Redis.
	DefaultRedisKeyPrefix = "imagebot:conversation:"

	// DefaultRedisTTL bounds how long an unanswered prompt request lingers.
	// A chat whose phase expires simply falls back to idle.
	DefaultRedisTTL = time.Hour
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379" or "redis://:password@host:6379/0")
	URL string

	// KeyPrefix is prepended to the chat ID to form the Redis key
	// (defaults to "imagebot:conversation:")
	KeyPrefix string

	// TTL is the time-to-live for stored phases (defaults to 1 hour)
	TTL time.Duration
}

// RedisStore implements Store using Redis for distributed storage.
// This is suitable for multi-instance deployments behind a load balancer.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore creates a new Redis-based phase store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultRedisTTL
	}

	slog.Info("redis conversation store connected", "key_prefix", keyPrefix, "ttl", ttl)

	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}, nil
}

func (s *RedisStore) key(chatID int64) string {
	return s.keyPrefix + strconv.FormatInt(chatID, 10)
}

// Get retrieves the phase for a chat from Redis.
func (s *RedisStore) Get(ctx context.Context, chatID int64) (Phase, error) {
	value, err := s.client.Get(ctx, s.key(chatID)).Result()
	if err != nil {
		if err == redis.Nil {
			return PhaseIdle, nil
		}
		return PhaseIdle, fmt.Errorf("failed to get phase from redis: %w", err)
	}
	return Phase(value), nil
}

// Set stores the phase for a chat in Redis.
func (s *RedisStore) Set(ctx context.Context, chatID int64, phase Phase) error {
	if phase == PhaseIdle {
		if err := s.client.Del(ctx, s.key(chatID)).Err(); err != nil {
			return fmt.Errorf("failed to clear phase in redis: %w", err)
		}
		return nil
	}

	if err := s.client.Set(ctx, s.key(chatID), string(phase), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set phase in redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

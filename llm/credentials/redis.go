package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sanchez314c/agent-chat/config"
)

// DefaultKeyPrefix namespaces credential keys in a shared Redis.
const DefaultKeyPrefix = "agentchat:credential:"

// RedisStore keeps one string key per provider.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// OpenRedisStore dials Redis and verifies the connection.
func OpenRedisStore(ctx context.Context, cfg config.RedisConfig, keyPrefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStore(client, keyPrefix), nil
}

func (s *RedisStore) key(providerID string) string {
	return s.keyPrefix + providerID
}

// Get returns the secret for providerID.
func (s *RedisStore) Get(ctx context.Context, providerID string) (string, error) {
	secret, err := s.client.Get(ctx, s.key(providerID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	return secret, nil
}

// Set stores the secret without expiry.
func (s *RedisStore) Set(ctx context.Context, providerID, secret string) error {
	if err := validate(providerID, secret); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(providerID), secret, 0).Err(); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Delete removes the key.
func (s *RedisStore) Delete(ctx context.Context, providerID string) error {
	if err := validateID(providerID); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.key(providerID)).Err(); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

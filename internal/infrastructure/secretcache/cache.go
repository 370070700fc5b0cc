// Package secretcache implements a read-through Redis cache in front of the
// configured provider verification secrets (SPEC_FULL.md DOMAIN STACK), so
// VerifyStage does not hit configuration storage on every claim.
package secretcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "payhook:secrets:"

// Source supplies the authoritative secret list for a provider (the
// configured candidates, newest first) on a cache miss.
type Source interface {
	SecretsFor(provider string) ([]string, error)
}

// Cache is a redis-backed pipeline.SecretProvider implementation.
type Cache struct {
	client *redis.Client
	source Source
	ttl    time.Duration
}

// New builds a Cache. ttl bounds how long a rotated-out secret can keep
// being served from cache after configuration changes.
func New(client *redis.Client, source Source, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, source: source, ttl: ttl}
}

// SecretsFor implements pipeline.SecretProvider.
func (c *Cache) SecretsFor(ctx context.Context, provider string) ([]string, error) {
	key := keyPrefix + provider

	if cached, err := c.client.Get(ctx, key).Result(); err == nil {
		var secrets []string
		if jsonErr := json.Unmarshal([]byte(cached), &secrets); jsonErr == nil {
			return secrets, nil
		}
	}

	secrets, err := c.source.SecretsFor(provider)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(secrets); err == nil {
		_ = c.client.Set(ctx, key, encoded, c.ttl).Err()
	}

	return secrets, nil
}

// Invalidate removes a provider's cached secrets immediately, for use after
// a rotation so the change takes effect without waiting for ttl to expire.
func (c *Cache) Invalidate(ctx context.Context, provider string) error {
	return c.client.Del(ctx, keyPrefix+provider).Err()
}

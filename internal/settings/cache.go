package settings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "parametres:"

// Cache wraps Redis based caching of settings category reads. It is a
// read-side optimisation only: writers invalidate, and the numbering
// allocation path always reads the authoritative rows inside its own
// transaction.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// FetchCategory loads a cached category or populates it using the loader.
func (c *Cache) FetchCategory(ctx context.Context, category string, loader func(context.Context) ([]Setting, error)) ([]Setting, error) {
	if loader == nil {
		return nil, errors.New("settings: loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}

	key := cacheKeyPrefix + category
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached []Setting
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
	} else if err != redis.Nil {
		return nil, err
	}

	values, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return nil, err
	}
	return values, nil
}

// Invalidate drops the cached category after an upsert.
func (c *Cache) Invalidate(ctx context.Context, category string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, cacheKeyPrefix+category).Err()
}

package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedValue is the last fetched value of a connection.
type CachedValue struct {
	Raw       string    `json:"raw"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Cache shares fetched values between API instances. A nil *Cache is a no-op.
type Cache struct {
	client *redis.Client
	prefix string
}

func NewCache(client *redis.Client) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client, prefix: "sheets:value:"}
}

func (c *Cache) Put(ctx context.Context, connectionID string, v CachedValue, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cached value: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+connectionID, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache sheets value: %w", err)
	}
	return nil
}

// Get returns the cached value, or ok=false on a miss.
func (c *Cache) Get(ctx context.Context, connectionID string) (CachedValue, bool, error) {
	if c == nil {
		return CachedValue{}, false, nil
	}
	raw, err := c.client.Get(ctx, c.prefix+connectionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return CachedValue{}, false, nil
	}
	if err != nil {
		return CachedValue{}, false, fmt.Errorf("read cached value: %w", err)
	}
	var v CachedValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return CachedValue{}, false, fmt.Errorf("decode cached value: %w", err)
	}
	return v, true, nil
}

func (c *Cache) Delete(ctx context.Context, connectionID string) error {
	if c == nil {
		return nil
	}
	return c.client.Del(ctx, c.prefix+connectionID).Err()
}

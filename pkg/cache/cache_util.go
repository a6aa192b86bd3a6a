package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

type Cache struct {
	client redis.UniversalClient // works with both single and cluster
}

// NewCache connects to a single node, or to a cluster when useCluster is set
// and more than one address is given.
func NewCache(addrs []string, password string, useCluster bool) *Cache {
	var rdb redis.UniversalClient

	if useCluster && len(addrs) > 1 {
		rdb = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    addrs,
			Password: password,
		})
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addrs[0],
			Password: password,
			DB:       0,
		})
	}

	return &Cache{client: rdb}
}

// Client exposes the underlying connection to the rate limiter.
func (c *Cache) Client() redis.UniversalClient {
	return c.client
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// SetJSON stores value under namespace:key.
func (c *Cache) SetJSON(ctx context.Context, namespace, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, namespace+":"+key, raw, ttl).Err()
}

// GetJSON decodes namespace:key into dst, returning ErrMiss when absent.
func (c *Cache) GetJSON(ctx context.Context, namespace, key string, dst any) error {
	raw, err := c.client.Get(ctx, namespace+":"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func (c *Cache) Delete(ctx context.Context, namespace, key string) error {
	return c.client.Del(ctx, namespace+":"+key).Err()
}

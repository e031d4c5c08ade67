package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/gtingest/internal/ingest"
)

// DefaultRedisPrefix namespaces item hashes.
const DefaultRedisPrefix = "gti:instrument:"

// Connect initializes a Redis client from URL or host:port input.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if opt, err := redis.ParseURL(redisURL); err == nil {
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// hashClient is the subset of *redis.Client the store uses.
type hashClient interface {
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// Redis stores each item as a hash. Field values are the JSON form of the
// typed attribute, e.g. {"N":"1000.00"}.
type Redis struct {
	client hashClient
	prefix string
}

// NewRedis returns a store using client. An empty prefix selects DefaultRedisPrefix.
func NewRedis(client hashClient, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

func (s *Redis) hashKey(key string) string {
	return s.prefix + key
}

// Upsert replaces the hash for item.Key in one transaction.
func (s *Redis) Upsert(ctx context.Context, item ingest.Item) error {
	values := make([]interface{}, 0, 2*len(item.Attributes))
	for name, attr := range item.Attributes {
		raw, err := json.Marshal(attr)
		if err != nil {
			return fmt.Errorf("encode %s.%s: %w", item.Key, name, err)
		}
		values = append(values, name, string(raw))
	}

	key := s.hashKey(item.Key)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, values...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", item.Key, err)
	}
	return nil
}

// Lookup reads the hash for key. A missing hash is reported as not found.
func (s *Redis) Lookup(ctx context.Context, key string) (ingest.Item, bool, error) {
	data, err := s.client.HGetAll(ctx, s.hashKey(key)).Result()
	if err != nil {
		return ingest.Item{}, false, fmt.Errorf("lookup %s: %w", key, err)
	}
	if len(data) == 0 {
		return ingest.Item{}, false, nil
	}

	item := ingest.Item{Key: key, Attributes: make(map[string]ingest.Attribute, len(data))}
	for name, raw := range data {
		var attr ingest.Attribute
		if err := json.Unmarshal([]byte(raw), &attr); err != nil {
			return ingest.Item{}, false, fmt.Errorf("decode %s.%s: %w", key, name, err)
		}
		item.Attributes[name] = attr
	}
	return item, true, nil
}

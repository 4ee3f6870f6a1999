// Package cache keeps verified research answers in Redis so repeated
// questions skip the network round trip.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/insightai/insight/internal/domain"
)

// DefaultTTL is how long a cached answer is served.
const DefaultTTL = 10 * time.Minute

// DefaultPrefix namespaces cache keys.
const DefaultPrefix = "insight:research:"

// Redis is a domain.ResultCache backed by a Redis server.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New wraps client. Zero ttl or empty prefix take the defaults.
func New(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// Dial parses a redis:// URL and returns a connected cache.
func Dial(ctx context.Context, url, prefix string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, prefix, ttl), nil
}

// Get returns the cached result for key, or domain.ErrCacheMiss.
func (r *Redis) Get(ctx context.Context, key string) (domain.ResearchResult, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ResearchResult{}, domain.ErrCacheMiss
	}
	if err != nil {
		return domain.ResearchResult{}, fmt.Errorf("load cached result: %w", err)
	}

	var res domain.ResearchResult
	if err := json.Unmarshal(data, &res); err != nil {
		return domain.ResearchResult{}, fmt.Errorf("decode cached result: %w", err)
	}
	return res, nil
}

// Set stores res under key for the configured TTL.
func (r *Redis) Set(ctx context.Context, key string, res domain.ResearchResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Package cache provides a Redis-backed prediction cache. The cache is
// an optimization only; every operation degrades gracefully when Redis
// is unavailable.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"nbaml_v3/pipeline/internal/inference"
	"nbaml_v3/pipeline/internal/metrics"
)

// Config holds Redis connection configuration
type Config struct {
	Addr     string
	Password string
	DB       int

	// TTL bounds how long a cached prediction can be served after a
	// model reload made it stale.
	TTL time.Duration
}

// RedisCache caches served predictions keyed by (model family, game)
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(cfg Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func predictionKey(family, gameID string) string {
	return fmt.Sprintf("nbaml:prediction:%s:%s", family, gameID)
}

// GetPrediction returns a cached prediction, or ok=false on miss
func (c *RedisCache) GetPrediction(ctx context.Context, family, gameID string) (inference.Prediction, bool) {
	raw, err := c.client.Get(ctx, predictionKey(family, gameID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			metrics.RecordError("cache", "read")
			log.Debug().Err(err).Msg("Prediction cache read failed")
		}
		metrics.RecordCacheMiss()
		return inference.Prediction{}, false
	}

	var p inference.Prediction
	if err := json.Unmarshal(raw, &p); err != nil {
		metrics.RecordCacheMiss()
		return inference.Prediction{}, false
	}
	metrics.RecordCacheHit()
	return p, true
}

// SetPrediction caches a served prediction with the configured TTL
func (c *RedisCache) SetPrediction(ctx context.Context, gameID string, p inference.Prediction) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, predictionKey(p.Family, gameID), raw, c.ttl).Err(); err != nil {
		metrics.RecordError("cache", "write")
		log.Debug().Err(err).Msg("Prediction cache write failed")
	}
}

// InvalidateFamily drops all cached predictions for a model family.
// Called after a reload so stale artifacts never serve from cache.
func (c *RedisCache) InvalidateFamily(ctx context.Context, family string) error {
	pattern := predictionKey(family, "*")

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Health verifies the Redis connection
func (c *RedisCache) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

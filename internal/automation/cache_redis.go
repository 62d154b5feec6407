package automation

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

type RedisCacheConfig struct {
	Addr     string
	Password string
	DB       int
	SetKey   string
}

// RedisProcessedCache keeps the processed-filename set in Redis so the dedup
// survives restarts and is shared across replicas. Redis failures degrade to
// "not cached" rather than blocking the scheduler.
type RedisProcessedCache struct {
	client *redis.Client
	setKey string
	logger *log.Logger
}

func NewRedisProcessedCache(ctx context.Context, cfg RedisCacheConfig, logger *log.Logger) (*RedisProcessedCache, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.SetKey == "" {
		cfg.SetKey = "emissions_processed_files"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisProcessedCache{client: client, setKey: cfg.SetKey, logger: logger}, nil
}

func (c *RedisProcessedCache) Contains(ctx context.Context, filename string) bool {
	ok, err := c.client.SIsMember(ctx, c.setKey, filename).Result()
	if err != nil {
		c.logger.Printf("processed cache lookup failed file=%s err=%v", filename, err)
		return false
	}
	return ok
}

func (c *RedisProcessedCache) Add(ctx context.Context, filename string) {
	if err := c.client.SAdd(ctx, c.setKey, filename).Err(); err != nil {
		c.logger.Printf("processed cache add failed file=%s err=%v", filename, err)
	}
}

func (c *RedisProcessedCache) Clear(ctx context.Context) int {
	size, err := c.client.SCard(ctx, c.setKey).Result()
	if err != nil {
		c.logger.Printf("processed cache size failed err=%v", err)
		size = 0
	}
	if err := c.client.Del(ctx, c.setKey).Err(); err != nil {
		c.logger.Printf("processed cache clear failed err=%v", err)
		return 0
	}
	return int(size)
}

func (c *RedisProcessedCache) Size(ctx context.Context) int {
	size, err := c.client.SCard(ctx, c.setKey).Result()
	if err != nil {
		c.logger.Printf("processed cache size failed err=%v", err)
		return 0
	}
	return int(size)
}

func (c *RedisProcessedCache) Close() error {
	return c.client.Close()
}

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/tahfidz-admin-api/pkg/config"
)

// NewRedis connects the student list cache. An empty host disables caching and yields a nil client.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts := options(cfg)
	if opts == nil {
		return nil, nil
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return client, nil
}

// options keeps timeouts short: a slow cache must never hold up an import's invalidation step.
func options(cfg config.RedisConfig) *redis.Options {
	if cfg.Host == "" {
		return nil
	}
	port := cfg.Port
	if port == 0 {
		port = 6379
	}
	return &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolTimeout:  2 * time.Second,
	}
}

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/paysheet/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// NewClient creates a new Redis client with configurable retry logic
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   1,
	})

	maxRetries := cfg.ConnectRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	retryDelay := cfg.ConnectRetryDelay
	if retryDelay <= 0 {
		retryDelay = 1 * time.Second
	}

	var err error
	for i := range maxRetries {
		if err = client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		select {
		case <-ctx.Done():
			client.Close()
			return nil, fmt.Errorf("connect to Redis: %w", ctx.Err())
		case <-time.After(time.Duration(i+1) * retryDelay):
		}
	}

	client.Close()
	return nil, fmt.Errorf("failed to connect to Redis after %d retries: %w", maxRetries, err)
}

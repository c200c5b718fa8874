package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis wraps go-redis to centralize configuration.
type Redis struct {
	inner *redis.Client
}

// NewRedis connects and pings the server before returning a usable Store.
func NewRedis(addr, username, password string, db int) (*Redis, error) {
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &Redis{inner: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	if r == nil || r.inner == nil {
		return "", errors.New("redis client not initialized")
	}
	return r.inner.Get(ctx, key).Result()
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if r == nil || r.inner == nil {
		return errors.New("redis client not initialized")
	}
	return r.inner.Set(ctx, key, value, ttl).Err()
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	if r == nil || r.inner == nil {
		return nil
	}
	return r.inner.Close()
}

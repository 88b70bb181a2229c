package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ride-share/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const revokedPrefix = "auth:revoked:"

// NewRedisClient parses url, connects and pings.
func NewRedisClient(ctx context.Context, url string, log logger.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	log.WithFields(logger.LogFields{"addr": opt.Addr}).Info("redis_connected", "Successfully connected to Redis")
	return client, nil
}

// RedisRevoker stores revoked token ids with a TTL matching the token's
// remaining lifetime, so the list cleans itself up.
type RedisRevoker struct {
	client *redis.Client
}

func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client}
}

func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedPrefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := r.client.Get(ctx, revokedPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup revoked token: %w", err)
	}
	return true, nil
}

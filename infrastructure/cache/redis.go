package cache

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/logger"
)

// NewCache connects to Redis and pings it. The client is returned even when the
// ping fails so callers can decide whether to continue without it.
func NewCache(ctx context.Context, addr, username, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.GetLogger().WithField("addr", addr).WithError(err).Warn("Redis ping failed")
		return client, err
	}
	logger.GetLogger().WithField("addr", addr).Info("Redis connected")
	return client, nil
}

package database

import (
	"context"
	"time"

	"go-warehouse-ws/pkg/config"
	applog "go-warehouse-ws/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis returns nil when no address is configured so callers can fall
// back to in-process cache and locks.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		applog.Get().Info("REDIS_ADDRESS not set; using in-memory cache and local locks")
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 100,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	applog.Get().WithField("addr", cfg.Addr).Info("connected to redis")
	return rdb, nil
}

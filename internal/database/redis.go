package database

import (
	"context"
	"fmt"

	"github.com/radiusdt/space-analytics/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisDB holds the client behind storage.RedisDashboardCache.
type RedisDB struct {
	Client *redis.Client
	logger *zap.Logger
}

// NewRedisDB connects and pings. Callers treat a failure as "run without cache".
func NewRedisDB(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*RedisDB, error) {
	client := redis.NewClient(redisOptions(cfg))

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("connected to Redis",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.Duration("op_timeout", cfg.OpTimeout),
	)

	return &RedisDB{Client: client, logger: logger}, nil
}

// redisOptions bounds every cache call by OpTimeout so a slow Redis degrades
// into cache misses instead of slow dashboards. Retries are off for the same reason.
func redisOptions(cfg config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		ClientName: applicationName,
		PoolSize:   cfg.PoolSize,
		MaxRetries: -1,
	}
	if cfg.OpTimeout > 0 {
		opts.DialTimeout = 2 * cfg.OpTimeout
		opts.ReadTimeout = cfg.OpTimeout
		opts.WriteTimeout = cfg.OpTimeout
		opts.PoolTimeout = cfg.OpTimeout
	}
	return opts
}

// Close closes the client.
func (r *RedisDB) Close() error {
	if r.Client == nil {
		return nil
	}
	err := r.Client.Close()
	r.logger.Info("Redis client closed")
	return err
}

// Health pings Redis; it backs the redis entry of /health.
func (r *RedisDB) Health(ctx context.Context) error {
	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

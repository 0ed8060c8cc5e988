package locker

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/residence/internal/clock"
	"github.com/smallbiznis/residence/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyPrefix = "residence:lock:"

var Module = fx.Module("locker",
	fx.Provide(New),
)

// New returns a redis-backed Locker when REDIS_ADDR is set and an
// in-memory one otherwise.
func New(lc fx.Lifecycle, cfg config.Config, clk clock.Clock, log *zap.Logger) Locker {
	log = log.Named("locker")
	if !cfg.Redis.Enabled() {
		log.Info("redis not configured, using in-memory locks")
		return NewMemoryLocker(clk)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return NewRedisLocker(client, keyPrefix)
}

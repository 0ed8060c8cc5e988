package ratelimit

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/residence/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyIngest = "residence:ingest:"

// IngestLimiter throttles readings pushed by meter integrations.
type IngestLimiter interface {
	Allow(ctx context.Context, subject string) (Result, error)
}

type bucketLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewIngestLimiter returns nil when ingest limits or redis are not
// configured; callers treat a nil limiter as unlimited.
func NewIngestLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) IngestLimiter {
	log = log.Named("ratelimit")
	if !cfg.IngestLimit.Enabled() {
		return nil
	}
	if !cfg.Redis.Enabled() {
		log.Warn("ingest rate limit configured without redis, limiting disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return &bucketLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.IngestLimit.Rate,
		burst:  cfg.IngestLimit.Burst,
	}
}

func (l *bucketLimiter) Allow(ctx context.Context, subject string) (Result, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return Result{}, ErrEmptyKey
	}
	return l.bucket.Allow(ctx, keyIngest+subject, l.rate, l.burst)
}

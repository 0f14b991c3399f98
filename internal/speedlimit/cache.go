package speedlimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"backend-steersafe/internal/logger"

	"github.com/redis/go-redis/v9"
)

// CachedProvider answers repeated lookups for the same road segment from
// Redis. Positions are bucketed to four decimals (about 11 m).
type CachedProvider struct {
	next  Provider
	redis *redis.Client
	ttl   time.Duration
	log   *slog.Logger
}

func NewCachedProvider(next Provider, redisClient *redis.Client, ttl time.Duration, log *slog.Logger) *CachedProvider {
	if log == nil {
		log = logger.Discard()
	}
	return &CachedProvider{next: next, redis: redisClient, ttl: ttl, log: log}
}

func (p *CachedProvider) SpeedLimit(ctx context.Context, lat, lng float64) (float64, error) {
	if p.redis == nil {
		return p.next.SpeedLimit(ctx, lat, lng)
	}

	key := cacheKey(lat, lng)
	limit, err := p.redis.Get(ctx, key).Float64()
	if err == nil {
		return limit, nil
	}
	if !errors.Is(err, redis.Nil) {
		p.log.Warn("speed limit cache read failed", "key", key, "error", err)
	}

	limit, err = p.next.SpeedLimit(ctx, lat, lng)
	if err != nil {
		return 0, err
	}
	if err := p.redis.Set(ctx, key, limit, p.ttl).Err(); err != nil {
		p.log.Warn("speed limit cache write failed", "key", key, "error", err)
	}
	return limit, nil
}

func cacheKey(lat, lng float64) string {
	return fmt.Sprintf("speedlimit:%.4f:%.4f", lat, lng)
}

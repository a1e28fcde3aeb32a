package cache

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Client stays nil until InitRedis succeeds. Every caller must tolerate a
// missing cache.
var Client *redis.Client

var (
	newRedisClient = func(opts *redis.Options) *redis.Client {
		return redis.NewClient(opts)
	}
	pingRedis = func(ctx context.Context, client *redis.Client) error {
		return client.Ping(ctx).Err()
	}
	newBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = 15 * time.Second
		return b
	}
	parseRedisURL = redis.ParseURL
)

// InitRedis connects to REDIS_URL. A cache that never answers is not fatal:
// forecasts are simply recomputed on every request.
func InitRedis(ctx context.Context) {
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		addr = "localhost:6379"
	}

	client, err := Connect(ctx, addr)
	if err != nil {
		log.Warn().Err(err).Str("addr", redactAddr(addr)).Msg("redis unavailable, forecast cache disabled")
		return
	}
	Client = client
	log.Info().Msg("connected to Redis")
}

// Connect accepts either host:port or a redis:// URL.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := parseRedisURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = parsed
	}

	client := newRedisClient(opts)
	operation := func() error { return pingRedis(ctx, client) }
	if err := backoff.Retry(operation, backoff.WithContext(newBackOff(), ctx)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func redactAddr(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		if j := strings.Index(addr, "://"); j >= 0 && j < i {
			return addr[:j+3] + "***" + addr[i:]
		}
	}
	return addr
}

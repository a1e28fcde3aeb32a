package db

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Pool is nil when DATABASE_URL is unset. Callers treat that as "run
// without persistence".
var Pool *pgxpool.Pool

var (
	pingPool = func(ctx context.Context, pool *pgxpool.Pool) error {
		return pool.Ping(ctx)
	}
	newBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = 30 * time.Second
		return b
	}
	newPool = pgxpool.New
)

func InitPostgres(ctx context.Context) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		log.Warn().Msg("DATABASE_URL not set, running without Postgres")
		return
	}
	if err := Connect(ctx, url); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Postgres")
	}
	log.Info().Msg("connected to Postgres")
}

// Connect opens the pool and retries the first ping with exponential
// backoff, so the service can start alongside its database container.
func Connect(ctx context.Context, url string) error {
	pool, err := newPool(ctx, url)
	if err != nil {
		return fmt.Errorf("open pool: %w", err)
	}

	operation := func() error {
		if err := pingPool(ctx, pool); err != nil {
			log.Warn().Err(err).Msg("postgres not ready, retrying")
			return err
		}
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(newBackOff(), ctx)); err != nil {
		pool.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}

	Pool = pool
	return nil
}

// Close releases the pool if one was opened.
func Close() {
	if Pool != nil {
		Pool.Close()
		Pool = nil
	}
}

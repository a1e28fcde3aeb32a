package main

import (
	"context"
	"os"
	"strconv"
	"strings"

	"trendcast/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	cmdUp      = "up"
	cmdDown    = "down"
	cmdVersion = "version"

	usage = "usage: go run ./cmd/migrate [up|down|version] [steps]"
)

var (
	loadEnvFunc = godotenv.Load
	openPool    = func(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
		if err := db.Connect(ctx, dsn); err != nil {
			return nil, err
		}
		return db.Pool, nil
	}
	exitFunc = os.Exit
)

func main() {
	_ = loadEnvFunc()
	exitFunc(run(context.Background(), os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	if len(args) < 1 {
		log.Error().Msg(usage)
		return 2
	}

	dsn := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(dsn) == "" {
		log.Error().Msg("DATABASE_URL is required")
		return 1
	}

	pool, err := openPool(ctx, dsn)
	if err != nil {
		log.Error().Err(err).Msg("connect to postgres")
		return 1
	}
	defer pool.Close()

	return execute(ctx, pool, args)
}

func execute(ctx context.Context, pool db.Migrator, args []string) int {
	if err := db.EnsureMigrationTable(ctx, pool); err != nil {
		log.Error().Err(err).Msg("ensure schema_migrations table")
		return 1
	}

	migrations, err := db.LoadMigrations(db.MigrationsFS)
	if err != nil {
		log.Error().Err(err).Msg("load migrations")
		return 1
	}

	switch args[0] {
	case cmdUp:
		applied, err := db.MigrateUp(ctx, pool, migrations)
		if err != nil {
			log.Error().Err(err).Int("applied", applied).Msg("apply migrations up")
			return 1
		}
		log.Info().Int("applied", applied).Msg("migrations up complete")
	case cmdDown:
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				log.Error().Str("steps", args[1]).Msg("invalid down steps")
				return 2
			}
			steps = n
		}
		rolledBack, err := db.MigrateDown(ctx, pool, migrations, steps)
		if err != nil {
			log.Error().Err(err).Int("rolled_back", rolledBack).Msg("apply migrations down")
			return 1
		}
		log.Info().Int("rolled_back", rolledBack).Msg("migrations down complete")
	case cmdVersion:
		version, name, err := db.CurrentVersion(ctx, pool)
		if err != nil {
			log.Error().Err(err).Msg("read current version")
			return 1
		}
		if version == 0 {
			log.Info().Msg("no migrations applied")
			return 0
		}
		log.Info().Int64("version", version).Str("name", name).Msg("current version")
	default:
		log.Error().Str("command", args[0]).Msg(usage)
		return 2
	}
	return 0
}

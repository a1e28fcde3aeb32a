package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"trendcast/internal/app"
	"trendcast/internal/config"
	"trendcast/internal/db"
	"trendcast/internal/domain"
	"trendcast/pkg/logger"
	"trendcast/pkg/tracing"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const usage = "usage: go run ./cmd/train [-key KEY] [-symbols AAPL,MSFT] [-backfill]"

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	newLoggerFunc    = logger.New
	initPostgresFunc = db.InitPostgres
	initTracerFunc   = tracing.InitTracer
	buildAppFunc     = app.Build
	exitFunc         = os.Exit
)

func main() {
	_ = loadEnvFunc()
	exitFunc(run(context.Background(), os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	key := fs.String("key", "", "model key to train (default MODEL_DEFAULT_KEY)")
	symbols := fs.String("symbols", "", "comma-separated training symbols (default WATCHLIST)")
	backfill := fs.Bool("backfill", false, "refresh stored history for each symbol first")
	if err := fs.Parse(args); err != nil {
		log.Error().Err(err).Msg(usage)
		return 2
	}

	cfg := loadConfigFunc()
	if *key != "" {
		cfg.ModelKey = strings.ToUpper(strings.TrimSpace(*key))
	}
	if *symbols != "" {
		list, err := parseSymbols(*symbols)
		if err != nil {
			log.Error().Err(err).Msg(usage)
			return 2
		}
		cfg.Watchlist = list
	}

	lg, err := newLoggerFunc(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Error().Err(err).Msg("failed to build logger")
		return 1
	}
	log.Logger = lg
	if err := cfg.Validate(); err != nil {
		lg.Error().Err(err).Msg("invalid configuration")
		return 2
	}

	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	initPostgresFunc(ctx)
	defer db.Close()

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		lg.Error().Err(err).Msg("failed to initialize tracer")
		return 1
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	a, err := buildAppFunc(app.Deps{Config: cfg, Log: lg, Tracer: tracer, Pool: db.Pool})
	if err != nil {
		lg.Error().Err(err).Msg("failed to build services")
		return 1
	}
	if a.TrainingJob == nil {
		lg.Error().Msg("training needs stored candles, set DATABASE_URL")
		return 1
	}

	if *backfill {
		for _, symbol := range cfg.Watchlist {
			candles, err := a.Market.RefreshHistory(ctx, symbol, cfg.HistoryInterval, cfg.HistoryLimit*2)
			if err != nil {
				lg.Warn().Err(err).Str("symbol", symbol).Msg("backfill failed")
				continue
			}
			lg.Info().Str("symbol", symbol).Int("candles", len(candles)).Msg("backfilled")
		}
	}

	res, err := a.TrainingJob.RunOnce(ctx)
	if err != nil {
		return 1
	}
	if res.PromoteError != nil {
		lg.Warn().Err(res.PromoteError).Msg("model trained but not promoted")
	}
	return 0
}

// parseSymbols splits and validates a comma-separated ticker list.
func parseSymbols(raw string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		s := domain.NormalizeTicker(part)
		if s == "" {
			continue
		}
		if !domain.IsValidTicker(s) {
			return nil, fmt.Errorf("invalid symbol %q", part)
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no symbols in %q", raw)
	}
	return out, nil
}

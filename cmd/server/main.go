package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trendcast/internal/app"
	"trendcast/internal/bot"
	"trendcast/internal/cache"
	"trendcast/internal/config"
	"trendcast/internal/db"
	"trendcast/internal/handler"
	"trendcast/pkg/logger"
	"trendcast/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "trendcast/docs"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	newLoggerFunc          = logger.New
	initPostgresFunc       = db.InitPostgres
	migrateFunc            = db.Migrate
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	buildAppFunc           = app.Build
	startJobsFunc          = startJobs
	startTelegramBotFunc   = bot.StartTelegramBot
	newRouterFunc          = gin.New
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Trendcast API
// @version         1.0
// @description     Short-horizon stock trend forecasts with a model, indicator and rule fallback chain.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        X-API-Key
func main() {
	_ = loadEnvFunc()

	cfg := loadConfigFunc()
	lg, err := newLoggerFunc(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build logger")
	}
	log.Logger = lg
	if err := cfg.Validate(); err != nil {
		lg.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)
	defer db.Close()

	if db.Pool != nil {
		applied, err := migrateFunc(ctx, db.Pool)
		if err != nil {
			lg.Fatal().Err(err).Msg("failed to run migrations")
		}
		lg.Info().Int("applied", applied).Msg("migrations up to date")
	}

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to initialize tracer")
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			lg.Error().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	a, err := buildAppFunc(app.Deps{
		Config: cfg,
		Log:    lg,
		Tracer: tracer,
		Pool:   db.Pool,
		Redis:  cache.Client,
	})
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to build services")
	}

	startJobsFunc(ctx, a)

	cmds := bot.NewCommands(a.Market, a.Forecasts, a.Advisor)
	if a.News != nil {
		cmds.SetNews(a.News)
	}
	if err := startTelegramBotFunc(ctx, lg, cfg.TelegramBotToken, cmds); err != nil {
		lg.Error().Err(err).Msg("telegram bot disabled")
	}

	r := buildRouter(a)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			lg.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	lg.Info().Msg("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("server forced to shutdown")
	}

	lg.Info().Msg("server exiting")
}

func startJobs(ctx context.Context, a *app.App) {
	go a.Poller.Start(ctx)
	if a.TrainingJob != nil {
		go a.TrainingJob.Start(ctx)
	}
	if a.OutcomeResolver != nil {
		go a.OutcomeResolver.Start(ctx)
	}
}

func buildRouter(a *app.App) *gin.Engine {
	r := newRouterFunc()
	r.Use(gin.Recovery(), otelgin.Middleware("trendcast"), handler.RequestLogger(a.Log))

	h := handler.New(a.Tracer, a.Forecasts, a.Market, a.Advisor)
	if a.TrainingJob != nil {
		h.SetTrainingRunner(a.TrainingJob)
	}
	if a.Outcomes != nil {
		h.SetAccuracyReader(a.Outcomes)
	}
	if a.News != nil {
		h.SetNewsReader(a.News)
	}
	addHealthChecks(h)

	h.RegisterRoutes(r, handler.APIKeyAuth(a.Config.APIKey), handler.RateLimit(a.Config.RateLimitPerMin))
	r.GET("/metrics", gin.WrapH(a.Metrics.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	return r
}

func addHealthChecks(h *handler.Handler) {
	if db.Pool != nil {
		h.AddHealthCheck("postgres", func(ctx context.Context) error { return db.Pool.Ping(ctx) })
	}
	if cache.Client != nil {
		h.AddHealthCheck("redis", func(ctx context.Context) error { return cache.Client.Ping(ctx).Err() })
	}
}

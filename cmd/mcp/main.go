package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"trendcast/internal/app"
	"trendcast/internal/cache"
	"trendcast/internal/config"
	"trendcast/internal/db"
	"trendcast/internal/mcptools"
	"trendcast/pkg/logger"
	"trendcast/pkg/tracing"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// version is overridden at link time.
var version = "dev"

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	newLoggerFunc          = logger.New
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	buildAppFunc           = app.Build
	notifyContextFunc      = signal.NotifyContext
	runStdioFunc           = func(ctx context.Context, server *mcp.Server) error { return server.Run(ctx, &mcp.StdioTransport{}) }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

func main() {
	_ = loadEnvFunc()

	cfg := loadConfigFunc()
	// stdout belongs to the stdio transport.
	lg, err := newLoggerFunc(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build logger")
	}
	log.Logger = lg
	if err := cfg.Validate(); err != nil {
		lg.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := notifyContextFunc(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)
	defer db.Close()

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

	timeout := time.Duration(cfg.MCPRequestTimeoutSecs) * time.Second
	tools := mcptools.NewTools(lg, a.Forecasts, a.Market, a.Advisor, timeout)
	tools.SetNews(a.News)
	server := mcptools.NewServer(tools, version)

	if err := serve(ctx, cfg, server, lg); err != nil {
		lg.Error().Err(err).Msg("mcp server stopped")
		return
	}
	lg.Info().Msg("mcp server exiting")
}

// serve blocks until ctx is done or the transport fails.
func serve(ctx context.Context, cfg *config.Config, server *mcp.Server, lg zerolog.Logger) error {
	if cfg.MCPTransport != "http" {
		lg.Info().Str("version", version).Msg("mcp server on stdio")
		err := runStdioFunc(ctx, server)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.MCPHTTPBind, strconv.Itoa(cfg.MCPHTTPPort)),
		Handler:           mcptools.HTTPHandler(server, cfg.MCPAuthToken),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.MCPAuthToken == "" && !isLoopback(cfg.MCPHTTPBind) {
		lg.Warn().Str("bind", cfg.MCPHTTPBind).Msg("MCP_AUTH_TOKEN not set on a non-loopback bind")
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info().Str("addr", srv.Addr).Msg("mcp http server listening")
		errCh <- startHTTPServerFunc(srv)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return shutdownHTTPServerFunc(srv, shutdownCtx)
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

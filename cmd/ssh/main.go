package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"trendcast/internal/app"
	"trendcast/internal/cache"
	"trendcast/internal/config"
	"trendcast/internal/db"
	"trendcast/internal/tui"
	"trendcast/pkg/logger"
	"trendcast/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	gossh "golang.org/x/crypto/ssh"
)

// ctxKey is a typed context key to avoid collisions.
type ctxKey string

const fingerprintKey ctxKey = "ssh_fingerprint"

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	newLoggerFunc     = logger.New
	initPostgresFunc  = db.InitPostgres
	initRedisFunc     = cache.InitRedis
	initTracerFunc    = tracing.InitTracer
	buildAppFunc      = app.Build
	newWishServerFunc = wish.NewServer
	setupSignalNotify = ossignal.Notify
	waitForSignalFunc = func(quit <-chan os.Signal) { <-quit }
)

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
	if len(cfg.SSHAuthorizedFingerprints) == 0 {
		lg.Warn().Msg("SSH_AUTHORIZED_FINGERPRINTS is empty, every key will be refused")
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.SSHPort)
	srv, err := newWishServerFunc(
		wish.WithAddress(addr),
		wish.WithHostKeyPath(cfg.SSHHostKeyPath),
		wish.WithPublicKeyAuth(publicKeyAuth(cfg.SSHAuthorizedFingerprints, lg)),
		wish.WithMiddleware(
			bubbletea.Middleware(sessionHandler(a)),
			logging.Middleware(),
		),
	)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to create SSH server")
	}

	if srv != nil {
		go func() {
			lg.Info().Str("addr", addr).Msg("ssh server listening")
			if err := srv.ListenAndServe(); err != nil {
				lg.Info().Err(err).Msg("ssh server stopped")
			}
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	lg.Info().Msg("shutting down ssh server")

	cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Error().Err(err).Msg("ssh server shutdown error")
		}
	}

	lg.Info().Msg("ssh server exited")
}

// publicKeyAuth admits keys whose SHA256 fingerprint is listed. The
// fingerprint is kept on the connection context for the session handler.
func publicKeyAuth(allowed []string, lg zerolog.Logger) func(ssh.Context, ssh.PublicKey) bool {
	set := make(map[string]bool, len(allowed))
	for _, fp := range allowed {
		set[strings.TrimSpace(fp)] = true
	}
	return func(ctx ssh.Context, key ssh.PublicKey) bool {
		fingerprint := gossh.FingerprintSHA256(key)
		if !set[fingerprint] {
			lg.Warn().Str("fingerprint", fingerprint).Msg("ssh auth denied")
			return false
		}
		if ctx != nil {
			ctx.SetValue(fingerprintKey, fingerprint)
		}
		lg.Info().Str("fingerprint", fingerprint).Msg("ssh auth accepted")
		return true
	}
}

func sessionHandler(a *app.App) func(ssh.Session) (tea.Model, []tea.ProgramOption) {
	return func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
		fingerprint, _ := s.Context().Value(fingerprintKey).(string)

		model := tui.NewModel(tui.Services{
			Quotes:    a.Market,
			Forecasts: a.Forecasts,
			Advisor:   a.Advisor,
			SessionID: sessionID(fingerprint),
			Username:  s.User(),
		})
		pty, _, _ := s.Pty()
		model.SetSize(pty.Window.Width, pty.Window.Height)

		return model, []tea.ProgramOption{tea.WithAltScreen()}
	}
}

// sessionID keys advisor history by key fingerprint so a user keeps their
// conversation across logins. Negative ids never collide with Telegram
// user chats.
func sessionID(fingerprint string) int64 {
	if fingerprint == "" {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(fingerprint))
	return -int64(h.Sum64() >> 1)
}

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"trendcast/internal/app"
	"trendcast/internal/bot"
	"trendcast/internal/config"
	"trendcast/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.DatabaseURL = ""
	cfg.TelegramBotToken = ""
	cfg.OpenAIAPIKey = ""
	cfg.APIKey = ""
	cfg.LogLevel = "error"
	cfg.YahooBaseURL = "http://127.0.0.1:1"
	return cfg
}

func TestMainBootstrap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	restore := stubServerDeps()
	defer restore()

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}
}

func TestBuildRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.APIKey = "k"
	a, err := app.Build(app.Deps{Config: cfg, Log: zerolog.Nop(), Tracer: trace.NewNoopTracerProvider().Tracer("test")})
	require.NoError(t, err)

	r := buildRouter(a)

	for path, want := range map[string]int{
		"/health":            http.StatusOK,
		"/metrics":           http.StatusOK,
		"/api/forecast/AAPL": http.StatusUnauthorized,
		"/api/models/train":  http.StatusNotFound,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/models/train", nil)
	req.Header.Set("X-API-Key", "k")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func stubServerDeps() func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origNewLogger := newLoggerFunc
	origInitPostgres := initPostgresFunc
	origInitRedis := initRedisFunc
	origInitTracer := initTracerFunc
	origStartJobs := startJobsFunc
	origStartTelegram := startTelegramBotFunc
	origNewRouter := newRouterFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc
	origStartHTTP := startHTTPServerFunc
	origShutdownHTTP := shutdownHTTPServerFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = testConfig
	newLoggerFunc = func(logger.Config) (zerolog.Logger, error) { return zerolog.Nop(), nil }
	initPostgresFunc = func(context.Context) {}
	initRedisFunc = func(context.Context) {}
	initTracerFunc = func(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	startJobsFunc = func(context.Context, *app.App) {}
	startTelegramBotFunc = func(context.Context, zerolog.Logger, string, *bot.Commands) error { return nil }
	newRouterFunc = func(...gin.OptionFunc) *gin.Engine { return gin.New() }
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}
	startHTTPServerFunc = func(*http.Server) error { return http.ErrServerClosed }
	shutdownHTTPServerFunc = func(*http.Server, context.Context) error { return nil }

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		newLoggerFunc = origNewLogger
		initPostgresFunc = origInitPostgres
		initRedisFunc = origInitRedis
		initTracerFunc = origInitTracer
		startJobsFunc = origStartJobs
		startTelegramBotFunc = origStartTelegram
		newRouterFunc = origNewRouter
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
		startHTTPServerFunc = origStartHTTP
		shutdownHTTPServerFunc = origShutdownHTTP
	}
}

package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"trendcast/internal/app"
	"trendcast/internal/config"
	"trendcast/internal/job"
	"trendcast/internal/ml/training"
	"trendcast/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type stubTrainer struct {
	key     string
	symbols []string
	err     error
}

func (s *stubTrainer) Train(_ context.Context, key string, symbols []string, _ time.Time) (training.ModelTrainResult, error) {
	s.key, s.symbols = key, symbols
	return training.ModelTrainResult{ModelKey: key, Version: 2, Promoted: true}, s.err
}

func stubTrainDeps(trainer *stubTrainer) func() {
	origLoadConfig := loadConfigFunc
	origNewLogger := newLoggerFunc
	origInitPostgres := initPostgresFunc
	origInitTracer := initTracerFunc
	origBuildApp := buildAppFunc

	loadConfigFunc = func() *config.Config {
		cfg := config.Load()
		cfg.DatabaseURL = ""
		return cfg
	}
	newLoggerFunc = func(logger.Config) (zerolog.Logger, error) { return zerolog.Nop(), nil }
	initPostgresFunc = func(context.Context) {}
	initTracerFunc = func(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	buildAppFunc = func(d app.Deps) (*app.App, error) {
		a := &app.App{Config: d.Config, Log: d.Log, Tracer: d.Tracer}
		if trainer != nil {
			a.TrainingJob = job.NewTrainingJob(d.Tracer, d.Log, trainer, nil, d.Config.ModelKey, d.Config.Watchlist, 2)
		}
		return a, nil
	}

	return func() {
		loadConfigFunc = origLoadConfig
		newLoggerFunc = origNewLogger
		initPostgresFunc = origInitPostgres
		initTracerFunc = origInitTracer
		buildAppFunc = origBuildApp
	}
}

func TestRunTrainsWithOverrides(t *testing.T) {
	trainer := &stubTrainer{}
	restore := stubTrainDeps(trainer)
	defer restore()

	code := run(context.Background(), []string{"-key", "tech", "-symbols", "aapl, msft"})
	require.Equal(t, 0, code)
	assert.Equal(t, "TECH", trainer.key)
	assert.Equal(t, []string{"AAPL", "MSFT"}, trainer.symbols)
}

func TestRunFailures(t *testing.T) {
	restore := stubTrainDeps(&stubTrainer{err: errors.New("not enough samples")})
	defer restore()

	assert.Equal(t, 2, run(context.Background(), []string{"-bogus"}))
	assert.Equal(t, 2, run(context.Background(), []string{"-symbols", "no way"}))
	assert.Equal(t, 1, run(context.Background(), nil))
}

func TestRunWithoutDatabase(t *testing.T) {
	restore := stubTrainDeps(nil)
	defer restore()

	assert.Equal(t, 1, run(context.Background(), nil))
}

func TestParseSymbols(t *testing.T) {
	got, err := parseSymbols(" nvda,,BRK-B ")
	require.NoError(t, err)
	assert.Equal(t, []string{"NVDA", "BRK-B"}, got)

	_, err = parseSymbols(" , ")
	assert.Error(t, err)
}

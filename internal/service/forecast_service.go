package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trendcast/internal/domain"
	"trendcast/internal/forecast"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultForecastTTL = 2 * time.Minute

// MarketReader is the slice of MarketService a forecast needs.
type MarketReader interface {
	GetHistory(ctx context.Context, symbol, interval string, limit int) (domain.PriceSeries, error)
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)
	GetProfile(ctx context.Context, symbol string) (*domain.CompanyProfile, error)
}

type Forecaster interface {
	Forecast(ctx context.Context, req forecast.Request) domain.Forecast
}

// ForecastMetrics records cache lookups and end-to-end latency.
type ForecastMetrics interface {
	CacheHit()
	CacheMiss()
	ObserveForecast(stage string, d time.Duration)
}

// OutcomeRecorder logs served forecasts for later scoring.
type OutcomeRecorder interface {
	Record(ctx context.Context, f domain.Forecast, interval string) (bool, error)
}

type ForecastOptions struct {
	Interval string
	Limit    int
	TTL      time.Duration
	Metrics  ForecastMetrics
	Outcomes OutcomeRecorder
	Clock    func() time.Time
}

// ForecastService resolves a ticker to market data, runs the forecast
// engine and caches non-error results per symbol.
type ForecastService struct {
	tracer   trace.Tracer
	log      zerolog.Logger
	market   MarketReader
	engine   Forecaster
	redis    RedisClient
	interval string
	limit    int
	ttl      time.Duration
	metrics  ForecastMetrics
	outcomes OutcomeRecorder
	clock    func() time.Time
}

func NewForecastService(
	tracer trace.Tracer,
	logger zerolog.Logger,
	market MarketReader,
	engine Forecaster,
	redisClient RedisClient,
	opts ForecastOptions,
) *ForecastService {
	if opts.Interval == "" {
		opts.Interval = domain.DefaultInterval
	}
	if opts.Limit <= 0 {
		opts.Limit = 365
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultForecastTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &ForecastService{
		tracer:   tracer,
		log:      logger,
		market:   market,
		engine:   engine,
		redis:    redisClient,
		interval: opts.Interval,
		limit:    opts.Limit,
		ttl:      opts.TTL,
		metrics:  opts.Metrics,
		outcomes: opts.Outcomes,
		clock:    opts.Clock,
	}
}

// Forecast returns ErrInvalidInput for a malformed ticker and
// ErrUnknownSymbol when the provider does not know it. Every other failure
// degrades into the engine's fallback chain, so a nil error always comes
// with a forecast record (possibly error-only).
func (s *ForecastService) Forecast(ctx context.Context, symbol string) (domain.Forecast, error) {
	ctx, span := s.tracer.Start(ctx, "forecast-service.forecast")
	defer span.End()

	symbol = domain.NormalizeTicker(symbol)
	span.SetAttributes(attribute.String("symbol", symbol))
	if !domain.IsValidTicker(symbol) {
		return domain.Forecast{}, fmt.Errorf("ticker %q: %w", symbol, domain.ErrInvalidInput)
	}

	if cached := s.cached(ctx, symbol); cached != nil {
		return *cached, nil
	}

	start := s.clock()
	req, err := s.buildRequest(ctx, symbol)
	if err != nil {
		span.RecordError(err)
		return domain.Forecast{}, err
	}

	result := s.engine.Forecast(ctx, req)
	if s.metrics != nil {
		s.metrics.ObserveForecast(string(result.Stage), s.clock().Sub(start))
	}
	if !result.IsError() {
		s.store(ctx, symbol, result)
		s.record(ctx, result)
	}
	return result, nil
}

func (s *ForecastService) buildRequest(ctx context.Context, symbol string) (forecast.Request, error) {
	req := forecast.Request{Symbol: symbol}

	series, histErr := s.market.GetHistory(ctx, symbol, s.interval, s.limit)
	if histErr != nil {
		if errors.Is(histErr, domain.ErrUnknownSymbol) {
			return req, histErr
		}
		s.log.Warn().Err(histErr).Str("symbol", symbol).Msg("history unavailable, forecasting from quote")
	}
	req.Series = series

	quote, err := s.market.GetQuote(ctx, symbol)
	switch {
	case err == nil && quote != nil:
		price, open := quote.Price, quote.Open
		req.CurrentPrice = &price
		if open > 0 {
			req.Open = &open
		}
		if quote.PreviousClose > 0 {
			change := quote.ChangePct()
			req.ChangePct = &change
		}
	case errors.Is(err, domain.ErrUnknownSymbol) && series.Len() == 0:
		return req, err
	case err == nil:
		s.log.Warn().Str("symbol", symbol).Msg("empty quote, using last close")
	default:
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("quote unavailable, using last close")
	}

	profile, err := s.market.GetProfile(ctx, symbol)
	if err != nil {
		s.log.Debug().Err(err).Str("symbol", symbol).Msg("no company profile")
	}
	req.Profile = profile
	return req, nil
}

func (s *ForecastService) cached(ctx context.Context, symbol string) *domain.Forecast {
	if s.redis == nil {
		return nil
	}
	data, err := s.redis.Get(ctx, forecastKey(symbol)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("redis forecast read error")
		}
		s.miss()
		return nil
	}
	var f domain.Forecast
	if err := json.Unmarshal(data, &f); err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("discarding unreadable cached forecast")
		s.miss()
		return nil
	}
	if s.metrics != nil {
		s.metrics.CacheHit()
	}
	return &f
}

func (s *ForecastService) store(ctx context.Context, symbol string, f domain.Forecast) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, forecastKey(symbol), data, s.ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("redis forecast write error")
	}
}

func (s *ForecastService) record(ctx context.Context, f domain.Forecast) {
	if s.outcomes == nil {
		return
	}
	if _, err := s.outcomes.Record(ctx, f, s.interval); err != nil {
		s.log.Warn().Err(err).Str("symbol", f.Symbol).Msg("forecast outcome not logged")
	}
}

func (s *ForecastService) miss() {
	if s.metrics != nil {
		s.metrics.CacheMiss()
	}
}

func forecastKey(symbol string) string { return "forecast:" + symbol }

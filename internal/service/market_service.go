package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"trendcast/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const quoteCacheTTL = 60 * time.Second

// MarketProvider is the upstream market data source.
type MarketProvider interface {
	FetchHistory(ctx context.Context, symbol, interval, rangeParam string) ([]*domain.Candle, error)
	FetchQuote(ctx context.Context, symbol string) (*domain.Quote, *domain.CompanyProfile, error)
}

type CandleRepository interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error)
	UpsertCandles(ctx context.Context, candles []*domain.Candle) error
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, symbol string) (*domain.CompanyProfile, error)
	UpsertProfile(ctx context.Context, p *domain.CompanyProfile) error
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RangeFunc maps an interval and bar count to an upstream range parameter.
type RangeFunc func(interval string, limit int) string

// MarketService reads history and quotes. Postgres is the history store and
// Redis caches quotes; both are optional, in which case every call goes
// upstream.
type MarketService struct {
	tracer   trace.Tracer
	log      zerolog.Logger
	provider MarketProvider
	candles  CandleRepository
	profiles ProfileRepository
	redis    RedisClient
	rangeFor RangeFunc
}

func NewMarketService(
	tracer trace.Tracer,
	logger zerolog.Logger,
	provider MarketProvider,
	candles CandleRepository,
	profiles ProfileRepository,
	redisClient RedisClient,
	rangeFor RangeFunc,
) *MarketService {
	return &MarketService{
		tracer:   tracer,
		log:      logger,
		provider: provider,
		candles:  candles,
		profiles: profiles,
		redis:    redisClient,
		rangeFor: rangeFor,
	}
}

// GetHistory returns up to limit bars for symbol, oldest first. Stored
// history shorter than limit triggers a refresh from the provider.
func (s *MarketService) GetHistory(ctx context.Context, symbol, interval string, limit int) (domain.PriceSeries, error) {
	ctx, span := s.tracer.Start(ctx, "market-service.get-history")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol), attribute.String("interval", interval), attribute.Int("limit", limit))

	if s.candles != nil {
		stored, err := s.candles.GetCandles(ctx, symbol, interval, limit)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("candle read failed, falling back to provider")
		} else if len(stored) >= limit {
			return domain.NewPriceSeries(symbol, stored)
		}
	}

	fetched, err := s.RefreshHistory(ctx, symbol, interval, limit)
	if err != nil {
		return domain.PriceSeries{}, err
	}
	return domain.NewPriceSeries(symbol, newest(fetched, limit))
}

// RefreshHistory pulls limit bars from the provider and stores them.
func (s *MarketService) RefreshHistory(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error) {
	ctx, span := s.tracer.Start(ctx, "market-service.refresh-history")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	candles, err := s.provider.FetchHistory(ctx, symbol, interval, s.rangeFor(interval, limit))
	if err != nil {
		return nil, err
	}
	if s.candles != nil {
		if err := s.candles.UpsertCandles(ctx, candles); err != nil {
			return nil, fmt.Errorf("upsert candles for %s: %w", symbol, err)
		}
	}
	s.log.Debug().Str("symbol", symbol).Str("interval", interval).Int("candles", len(candles)).Msg("refreshed history")
	return candles, nil
}

// GetQuote returns the latest quote, served from Redis when fresh. The
// profile carried by the quote response is stored as a side effect.
func (s *MarketService) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	ctx, span := s.tracer.Start(ctx, "market-service.get-quote")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	if s.redis != nil {
		cached, err := s.getQuoteCache(ctx, symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("redis quote read error")
		}
		if cached != nil {
			return cached, nil
		}
	}

	quote, profile, err := s.provider.FetchQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if s.redis != nil {
		if err := s.setQuoteCache(ctx, quote); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("redis quote write error")
		}
	}
	if s.profiles != nil && profile != nil {
		if err := s.profiles.UpsertProfile(ctx, profile); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("profile upsert failed")
		}
	}
	return quote, nil
}

// GetProfile returns stored company metadata, or the profile built from a
// fresh quote when none is stored. A missing profile is not an error.
func (s *MarketService) GetProfile(ctx context.Context, symbol string) (*domain.CompanyProfile, error) {
	ctx, span := s.tracer.Start(ctx, "market-service.get-profile")
	defer span.End()

	if s.profiles != nil {
		p, err := s.profiles.GetProfile(ctx, symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("profile read failed")
		} else if p != nil {
			return p, nil
		}
	}

	quote, err := s.GetQuote(ctx, symbol)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownSymbol) {
			return nil, err
		}
		return nil, nil
	}
	if quote.MarketCap <= 0 && quote.Name == "" {
		return nil, nil
	}
	return &domain.CompanyProfile{Symbol: quote.Symbol, Name: quote.Name, MarketCap: quote.MarketCap, UpdatedAt: quote.UpdatedAt}, nil
}

func (s *MarketService) setQuoteCache(ctx context.Context, q *domain.Quote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, quoteKey(q.Symbol), data, quoteCacheTTL).Err()
}

func (s *MarketService) getQuoteCache(ctx context.Context, symbol string) (*domain.Quote, error) {
	data, err := s.redis.Get(ctx, quoteKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var q domain.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func quoteKey(symbol string) string { return "quote:" + symbol }

// newest keeps the limit most recent bars regardless of input order.
func newest(candles []*domain.Candle, limit int) []*domain.Candle {
	if len(candles) <= limit {
		return candles
	}
	sorted := append([]*domain.Candle(nil), candles...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OpenTime.Before(sorted[j].OpenTime) })
	return sorted[len(sorted)-limit:]
}

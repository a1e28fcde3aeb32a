package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"trendcast/internal/domain"
	"trendcast/internal/sentiment"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	newsCacheTTL = 15 * time.Minute
	maxHeadlines = 20
)

// HeadlineProvider fetches raw headlines for a ticker.
type HeadlineProvider interface {
	FetchHeadlines(ctx context.Context, symbol string, maxItems int) ([]domain.Headline, error)
}

// NewsService returns scored headlines, newest first. Redis caches the
// scored list per symbol when configured.
type NewsService struct {
	tracer   trace.Tracer
	log      zerolog.Logger
	provider HeadlineProvider
	redis    RedisClient
}

func NewNewsService(tracer trace.Tracer, logger zerolog.Logger, provider HeadlineProvider, redisClient RedisClient) *NewsService {
	return &NewsService{tracer: tracer, log: logger, provider: provider, redis: redisClient}
}

// Headlines returns up to limit scored headlines for symbol.
func (s *NewsService) Headlines(ctx context.Context, symbol string, limit int) ([]domain.Headline, error) {
	ctx, span := s.tracer.Start(ctx, "news-service.headlines")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol), attribute.Int("limit", limit))

	if limit <= 0 || limit > maxHeadlines {
		limit = maxHeadlines
	}

	if s.redis != nil {
		cached, err := s.getCache(ctx, symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("redis news read error")
		}
		if cached != nil {
			return head(cached, limit), nil
		}
	}

	items, err := s.provider.FetchHeadlines(ctx, symbol, maxHeadlines)
	if err != nil {
		return nil, err
	}
	for i := range items {
		score := sentiment.Heuristic(items[i].Title, items[i].Summary)
		items[i].Sentiment = score.Value
		items[i].Label = score.Label
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].PublishedAt.After(items[j].PublishedAt) })

	if s.redis != nil {
		if err := s.setCache(ctx, symbol, items); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("redis news write error")
		}
	}
	return head(items, limit), nil
}

func (s *NewsService) setCache(ctx context.Context, symbol string, items []domain.Headline) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, newsKey(symbol), data, newsCacheTTL).Err()
}

func (s *NewsService) getCache(ctx context.Context, symbol string) ([]domain.Headline, error) {
	data, err := s.redis.Get(ctx, newsKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var items []domain.Headline
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func newsKey(symbol string) string { return "news:" + symbol }

func head(items []domain.Headline, n int) []domain.Headline {
	if len(items) > n {
		return items[:n]
	}
	return items
}

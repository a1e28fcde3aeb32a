package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"trendcast/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHeadlines struct {
	items []domain.Headline
	err   error
	calls int
}

func (s *stubHeadlines) FetchHeadlines(ctx context.Context, symbol string, maxItems int) ([]domain.Headline, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.Headline(nil), s.items...), nil
}

func sampleHeadlines() []domain.Headline {
	day := time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC)
	return []domain.Headline{
		{Symbol: "AAPL", Title: "Apple shares plunge after recall", PublishedAt: day},
		{Symbol: "AAPL", Title: "Apple beats estimates", Summary: "buyback approved", PublishedAt: day.Add(2 * time.Hour)},
		{Symbol: "AAPL", Title: "Apple event scheduled", PublishedAt: day.Add(time.Hour)},
	}
}

func TestHeadlinesAreScoredAndSorted(t *testing.T) {
	t.Parallel()

	provider := &stubHeadlines{items: sampleHeadlines()}
	items, err := NewNewsService(testTracer, testLogger, provider, nil).Headlines(context.Background(), "AAPL", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Apple beats estimates", items[0].Title)
	assert.Equal(t, domain.SentimentBullish, items[0].Label)
	assert.Positive(t, items[0].Sentiment)
	assert.Equal(t, "Apple event scheduled", items[1].Title)
	assert.Equal(t, domain.SentimentNeutral, items[1].Label)
}

func TestHeadlinesCached(t *testing.T) {
	t.Parallel()

	provider := &stubHeadlines{items: sampleHeadlines()}
	redis := newFakeRedis()
	svc := NewNewsService(testTracer, testLogger, provider, redis)

	first, err := svc.Headlines(context.Background(), "AAPL", 0)
	require.NoError(t, err)
	assert.Len(t, first, 3)
	assert.Equal(t, newsCacheTTL, redis.ttls["news:AAPL"])

	second, err := svc.Headlines(context.Background(), "AAPL", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Title, second[0].Title)
	assert.Equal(t, domain.SentimentBearish, first[2].Label)
}

func TestHeadlinesProviderError(t *testing.T) {
	t.Parallel()

	redis := newFakeRedis()
	redis.getErr = errors.New("connection reset")
	provider := &stubHeadlines{err: errors.New("feed down")}

	_, err := NewNewsService(testTracer, testLogger, provider, redis).Headlines(context.Background(), "AAPL", 5)
	assert.EqualError(t, err, "feed down")
}

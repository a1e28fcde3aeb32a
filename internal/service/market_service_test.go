package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"trendcast/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMarket(p *mockProvider, c CandleRepository, pr ProfileRepository, r RedisClient) *MarketService {
	return NewMarketService(testTracer, testLogger, p, c, pr, r, fixedRange)
}

func TestGetHistoryServesStoredBars(t *testing.T) {
	t.Parallel()

	repo := &mockCandleRepo{getResp: dailyCandles("AAPL", 30, 100)}
	provider := &mockProvider{}

	series, err := newMarket(provider, repo, nil, nil).GetHistory(context.Background(), "AAPL", "1d", 30)
	require.NoError(t, err)
	assert.Equal(t, 30, series.Len())
	assert.Zero(t, provider.historyCalls)
	assert.Equal(t, 30, repo.lastGetLimit)
}

func TestGetHistoryRefreshesShortHistory(t *testing.T) {
	t.Parallel()

	repo := &mockCandleRepo{getResp: dailyCandles("AAPL", 5, 100)}
	provider := &mockProvider{history: dailyCandles("AAPL", 50, 100)}

	series, err := newMarket(provider, repo, nil, nil).GetHistory(context.Background(), "AAPL", "1d", 30)
	require.NoError(t, err)
	assert.Equal(t, 30, series.Len())
	assert.Equal(t, 1, provider.historyCalls)
	assert.Equal(t, "1y", provider.lastRange)
	assert.Len(t, repo.upsertArg, 50)

	last, _ := series.Last()
	assert.Equal(t, 149.0, last.Close)
}

func TestGetHistoryWithoutDatabase(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{history: dailyCandles("AAPL", 10, 100)}
	series, err := newMarket(provider, nil, nil, nil).GetHistory(context.Background(), "AAPL", "1d", 30)
	require.NoError(t, err)
	assert.Equal(t, 10, series.Len())
}

func TestGetHistoryRepoErrorFallsBackToProvider(t *testing.T) {
	t.Parallel()

	repo := &mockCandleRepo{getErr: errors.New("pool closed")}
	provider := &mockProvider{history: dailyCandles("AAPL", 10, 100)}
	_, err := newMarket(provider, repo, nil, nil).GetHistory(context.Background(), "AAPL", "1d", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.historyCalls)
}

func TestGetHistoryPropagatesUnknownSymbol(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{historyErr: domain.ErrUnknownSymbol}
	_, err := newMarket(provider, nil, nil, nil).GetHistory(context.Background(), "ZZZZ", "1d", 10)
	assert.ErrorIs(t, err, domain.ErrUnknownSymbol)
}

func TestRefreshHistoryUpsertError(t *testing.T) {
	t.Parallel()

	repo := &mockCandleRepo{upsertErr: errors.New("disk full")}
	provider := &mockProvider{history: dailyCandles("AAPL", 3, 100)}
	_, err := newMarket(provider, repo, nil, nil).RefreshHistory(context.Background(), "AAPL", "1d", 3)
	assert.ErrorContains(t, err, "upsert candles for AAPL")
}

func TestGetQuoteCachesAndStoresProfile(t *testing.T) {
	t.Parallel()

	redis := newFakeRedis()
	profiles := &mockProfileRepo{}
	provider := &mockProvider{
		quote:   &domain.Quote{Symbol: "AAPL", Price: 190, PreviousClose: 188},
		profile: &domain.CompanyProfile{Symbol: "AAPL", Name: "Apple Inc.", MarketCap: 3e12},
	}
	svc := newMarket(provider, nil, profiles, redis)

	q, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 190.0, q.Price)
	require.Len(t, profiles.upserted, 1)
	assert.Equal(t, quoteCacheTTL, redis.ttls["quote:AAPL"])

	q, err = svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 190.0, q.Price)
	assert.Equal(t, 1, provider.quoteCalls)
}

func TestGetQuoteIgnoresRedisErrors(t *testing.T) {
	t.Parallel()

	redis := newFakeRedis()
	redis.getErr = errors.New("connection reset")
	redis.setErr = errors.New("connection reset")
	provider := &mockProvider{quote: &domain.Quote{Symbol: "AAPL", Price: 190}}

	q, err := newMarket(provider, nil, nil, redis).GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 190.0, q.Price)
}

func TestGetProfile(t *testing.T) {
	t.Parallel()

	stored := &domain.CompanyProfile{Symbol: "MSFT", Name: "Microsoft", MarketCap: 3.2e12}
	profiles := &mockProfileRepo{stored: map[string]*domain.CompanyProfile{"MSFT": stored}}
	provider := &mockProvider{quote: &domain.Quote{Symbol: "AAPL", Name: "Apple Inc.", Price: 190, MarketCap: 3e12}}
	svc := newMarket(provider, nil, profiles, nil)

	p, err := svc.GetProfile(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Same(t, stored, p)
	assert.Zero(t, provider.quoteCalls)

	p, err = svc.GetProfile(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 3e12, p.MarketCap)

	provider.quoteErr = errors.New("timeout")
	provider.quote = nil
	p, err = newMarket(provider, nil, nil, nil).GetProfile(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestCachedQuoteRoundTrip(t *testing.T) {
	t.Parallel()

	redis := newFakeRedis()
	data, _ := json.Marshal(domain.Quote{Symbol: "NVDA", Price: 900})
	redis.data["quote:NVDA"] = data

	q, err := newMarket(&mockProvider{}, nil, nil, redis).GetQuote(context.Background(), "NVDA")
	require.NoError(t, err)
	assert.Equal(t, 900.0, q.Price)
}

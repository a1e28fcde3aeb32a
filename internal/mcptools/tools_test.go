package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trendcast/internal/advisor"
	"trendcast/internal/domain"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubForecasts struct {
	forecast domain.Forecast
	err      error
}

func (s *stubForecasts) Forecast(ctx context.Context, symbol string) (domain.Forecast, error) {
	if s.err != nil {
		return domain.Forecast{}, s.err
	}
	f := s.forecast
	f.Symbol = symbol
	return f, nil
}

type stubMarket struct {
	quote    *domain.Quote
	series   domain.PriceSeries
	err      error
	interval string
	limit    int
}

func (s *stubMarket) GetHistory(ctx context.Context, symbol, interval string, limit int) (domain.PriceSeries, error) {
	s.interval, s.limit = interval, limit
	return s.series, s.err
}

func (s *stubMarket) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	return s.quote, s.err
}

type stubRecommender struct{}

func (stubRecommender) Recommend(ctx context.Context, symbol string) (advisor.Recommendation, error) {
	return advisor.Recommendation{Symbol: "AAPL", Action: "HOLD", Text: "HOLD - Neutral market conditions", Source: "rules"}, nil
}

type stubNews struct {
	limit int
	err   error
}

func (s *stubNews) Headlines(ctx context.Context, symbol string, limit int) ([]domain.Headline, error) {
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return []domain.Headline{{Symbol: symbol, Title: "Apple beats estimates", Label: domain.SentimentBullish, Sentiment: 0.75}}, nil
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func newTools(f ForecastReader, m MarketReader) *Tools {
	return NewTools(zerolog.Nop(), f, m, stubRecommender{}, time.Second)
}

func TestForecastTool(t *testing.T) {
	tools := newTools(&stubForecasts{forecast: domain.Forecast{
		Stage: domain.StageRule, Direction: domain.DirectionUp, Confidence: 0.6,
		ConfidenceScale: domain.ScaleUnit, CurrentPrice: 100, PredictedPrice: 100.2,
		PredictedChangePct: 0.2, Factors: []string{"Price is above opening level"},
	}}, &stubMarket{})

	res, _, err := tools.Forecast(context.Background(), nil, SymbolInput{Symbol: "google"})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &body))
	assert.Equal(t, "GOOGL", body["symbol"])
	assert.Equal(t, "UP", body["direction"])
}

func TestForecastToolErrors(t *testing.T) {
	tools := newTools(&stubForecasts{forecast: *domain.ErrorForecast(domain.InvalidPriceMessage)}, &stubMarket{})
	res, _, err := tools.Forecast(context.Background(), nil, SymbolInput{Symbol: "AAPL"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "no forecast for AAPL: Invalid price data", text(t, res))

	tools = newTools(&stubForecasts{err: domain.ErrUnknownSymbol}, &stubMarket{})
	res, _, _ = tools.Forecast(context.Background(), nil, SymbolInput{Symbol: "ZZZZ"})
	assert.True(t, res.IsError)
	assert.Equal(t, "unknown symbol: ZZZZ", text(t, res))

	tools = newTools(&stubForecasts{err: errors.New("boom")}, &stubMarket{})
	res, _, _ = tools.Forecast(context.Background(), nil, SymbolInput{Symbol: "AAPL"})
	assert.Equal(t, "forecast failed for AAPL", text(t, res))
}

func TestQuoteTool(t *testing.T) {
	tools := newTools(&stubForecasts{}, &stubMarket{quote: &domain.Quote{Symbol: "MSFT", Price: 410}})
	res, _, err := tools.Quote(context.Background(), nil, SymbolInput{Symbol: "msft"})
	require.NoError(t, err)
	assert.Contains(t, text(t, res), `"price":410`)

	res, _, _ = tools.Quote(context.Background(), nil, SymbolInput{Symbol: "???"})
	assert.True(t, res.IsError)
}

func TestCandlesToolDefaultsAndBounds(t *testing.T) {
	m := &stubMarket{}
	tools := newTools(&stubForecasts{}, m)

	res, _, err := tools.Candles(context.Background(), nil, CandlesInput{Symbol: "AAPL"})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "1d", m.interval)
	assert.Equal(t, 60, m.limit)

	_, _, _ = tools.Candles(context.Background(), nil, CandlesInput{Symbol: "AAPL", Interval: "1wk", Limit: 10000})
	assert.Equal(t, "1wk", m.interval)
	assert.Equal(t, maxCandles, m.limit)

	res, _, _ = tools.Candles(context.Background(), nil, CandlesInput{Symbol: "AAPL", Interval: "5m"})
	assert.True(t, res.IsError)
}

func TestNewsTool(t *testing.T) {
	news := &stubNews{}
	tools := newTools(&stubForecasts{}, &stubMarket{})
	tools.SetNews(news)

	res, _, err := tools.News(context.Background(), nil, NewsInput{Symbol: "apple"})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, 5, news.limit)
	assert.Contains(t, text(t, res), `"symbol":"AAPL"`)
	assert.Contains(t, text(t, res), `"label":"bullish"`)

	_, _, _ = tools.News(context.Background(), nil, NewsInput{Symbol: "AAPL", Limit: 99})
	assert.Equal(t, maxHeadlines, news.limit)

	news.err = errors.New("feed down")
	res, _, _ = tools.News(context.Background(), nil, NewsInput{Symbol: "AAPL"})
	assert.True(t, res.IsError)
	assert.Equal(t, "news failed for AAPL", text(t, res))
}

func TestServerOverInMemoryTransport(t *testing.T) {
	ctx := context.Background()
	server := NewServer(newTools(&stubForecasts{forecast: domain.Forecast{Direction: domain.DirectionNeutral, Factors: []string{"x"}}}, &stubMarket{}), "test")

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"forecast", "quote", "candles", "recommend"}, names)

	withNews := newTools(&stubForecasts{}, &stubMarket{})
	withNews.SetNews(&stubNews{})
	assert.NotNil(t, NewServer(withNews, "test"))

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "forecast", Arguments: map[string]any{"symbol": "AAPL"}})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), `"direction":"NEUTRAL"`)
}

func TestBearerAuth(t *testing.T) {
	h := BearerAuth("s3cret", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for header, want := range map[string]int{
		"":              http.StatusUnauthorized,
		"Bearer wrong":  http.StatusUnauthorized,
		"Basic s3cret":  http.StatusUnauthorized,
		"Bearer s3cret": http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, header)
	}
}

// Package mcptools exposes forecasts, quotes and recommendations as Model
// Context Protocol tools.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trendcast/internal/advisor"
	"trendcast/internal/domain"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

type ForecastReader interface {
	Forecast(ctx context.Context, symbol string) (domain.Forecast, error)
}

type MarketReader interface {
	GetHistory(ctx context.Context, symbol, interval string, limit int) (domain.PriceSeries, error)
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)
}

type Recommender interface {
	Recommend(ctx context.Context, symbol string) (advisor.Recommendation, error)
}

type NewsReader interface {
	Headlines(ctx context.Context, symbol string, limit int) ([]domain.Headline, error)
}

type SymbolInput struct {
	Symbol string `json:"symbol" jsonschema:"ticker such as AAPL, or a company name such as microsoft"`
}

type CandlesInput struct {
	Symbol   string `json:"symbol" jsonschema:"ticker such as AAPL"`
	Interval string `json:"interval,omitempty" jsonschema:"bar size: 1h, 1d or 1wk (default 1d)"`
	Limit    int    `json:"limit,omitempty" jsonschema:"number of bars, 1-500 (default 60)"`
}

type NewsInput struct {
	Symbol string `json:"symbol" jsonschema:"ticker such as AAPL, or a company name such as microsoft"`
	Limit  int    `json:"limit,omitempty" jsonschema:"number of headlines, 1-20 (default 5)"`
}

const (
	maxCandles   = 500
	maxHeadlines = 20
)

// Tools holds the services behind each tool. Each call runs under its own
// timeout.
type Tools struct {
	log         zerolog.Logger
	forecasts   ForecastReader
	market      MarketReader
	recommender Recommender
	news        NewsReader
	timeout     time.Duration
}

func NewTools(log zerolog.Logger, forecasts ForecastReader, market MarketReader, recommender Recommender, timeout time.Duration) *Tools {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Tools{log: log, forecasts: forecasts, market: market, recommender: recommender, timeout: timeout}
}

// SetNews enables the news tool.
func (t *Tools) SetNews(news NewsReader) { t.news = news }

// NewServer registers the tools on a fresh MCP server.
func NewServer(t *Tools, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "trendcast", Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "forecast",
		Description: "Forecast the next bar for a stock: direction (UP, DOWN, NEUTRAL), confidence, predicted price and the factors behind it.",
	}, t.Forecast)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "quote",
		Description: "Latest quote for a stock: price, open, previous close, day range, volume and market cap.",
	}, t.Quote)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "candles",
		Description: "Historical OHLCV bars for a stock, oldest first.",
	}, t.Candles)
	if t.recommender != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "recommend",
			Description: "BUY, SELL or HOLD recommendation for a stock with a short explanation.",
		}, t.Recommend)
	}
	if t.news != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "news",
			Description: "Recent headlines for a stock, newest first, each with a keyword sentiment score in [-1, 1].",
		}, t.News)
	}
	return server
}

func (t *Tools) Forecast(ctx context.Context, _ *mcp.CallToolRequest, in SymbolInput) (*mcp.CallToolResult, any, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	symbol := advisor.ResolveTicker(in.Symbol)
	f, err := t.forecasts.Forecast(ctx, symbol)
	if err != nil {
		return t.toolError("forecast", symbol, err), nil, nil
	}
	if f.IsError() {
		return errorResult(fmt.Sprintf("no forecast for %s: %s", symbol, f.Error)), nil, nil
	}
	return jsonResult(f)
}

func (t *Tools) Quote(ctx context.Context, _ *mcp.CallToolRequest, in SymbolInput) (*mcp.CallToolResult, any, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	symbol := advisor.ResolveTicker(in.Symbol)
	if !domain.IsValidTicker(symbol) {
		return errorResult("invalid symbol: " + in.Symbol), nil, nil
	}
	q, err := t.market.GetQuote(ctx, symbol)
	if err != nil {
		return t.toolError("quote", symbol, err), nil, nil
	}
	return jsonResult(q)
}

func (t *Tools) Candles(ctx context.Context, _ *mcp.CallToolRequest, in CandlesInput) (*mcp.CallToolResult, any, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	symbol := advisor.ResolveTicker(in.Symbol)
	if !domain.IsValidTicker(symbol) {
		return errorResult("invalid symbol: " + in.Symbol), nil, nil
	}
	interval := in.Interval
	if interval == "" {
		interval = domain.DefaultInterval
	}
	if !domain.IsSupportedInterval(interval) {
		return errorResult(fmt.Sprintf("unsupported interval %q, use one of %v", interval, domain.SupportedIntervals)), nil, nil
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 60
	}
	if limit > maxCandles {
		limit = maxCandles
	}

	series, err := t.market.GetHistory(ctx, symbol, interval, limit)
	if err != nil {
		return t.toolError("candles", symbol, err), nil, nil
	}
	return jsonResult(map[string]any{
		"symbol":   symbol,
		"interval": interval,
		"candles":  series.Candles(),
	})
}

func (t *Tools) Recommend(ctx context.Context, _ *mcp.CallToolRequest, in SymbolInput) (*mcp.CallToolResult, any, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	rec, err := t.recommender.Recommend(ctx, in.Symbol)
	if err != nil {
		return t.toolError("recommend", in.Symbol, err), nil, nil
	}
	return jsonResult(rec)
}

func (t *Tools) News(ctx context.Context, _ *mcp.CallToolRequest, in NewsInput) (*mcp.CallToolResult, any, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	symbol := advisor.ResolveTicker(in.Symbol)
	if !domain.IsValidTicker(symbol) {
		return errorResult("invalid symbol: " + in.Symbol), nil, nil
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 5
	}
	if limit > maxHeadlines {
		limit = maxHeadlines
	}
	items, err := t.news.Headlines(ctx, symbol, limit)
	if err != nil {
		return t.toolError("news", symbol, err), nil, nil
	}
	return jsonResult(map[string]any{
		"symbol":    symbol,
		"headlines": items,
	})
}

// toolError reports failures to the client as tool errors so the model can
// react to them. Only unexpected errors are logged.
func (t *Tools) toolError(tool, symbol string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return errorResult("invalid symbol: " + symbol)
	case errors.Is(err, domain.ErrUnknownSymbol):
		return errorResult("unknown symbol: " + symbol)
	case errors.Is(err, context.DeadlineExceeded):
		return errorResult("timed out fetching data for " + symbol)
	}
	t.log.Warn().Err(err).Str("tool", tool).Str("symbol", symbol).Msg("mcp tool failed")
	return errorResult(fmt.Sprintf("%s failed for %s", tool, symbol))
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}}}, nil, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: msg}}}
}

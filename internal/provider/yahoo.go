package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trendcast/internal/domain"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	YahooBaseURL = "https://query1.finance.yahoo.com"
	yahooName    = "yahoo"
	userAgent    = "Mozilla/5.0 (compatible; trendcast/1.0)"
)

// UpstreamObserver is told the outcome of every upstream call.
type UpstreamObserver interface {
	UpstreamRequest(provider, outcome string)
}

type YahooOptions struct {
	BaseURL        string
	RequestsPerSec float64
	Timeout        time.Duration
	MaxElapsed     time.Duration
	Observer       UpstreamObserver
}

// YahooProvider fetches daily history and quotes from the public Yahoo
// Finance endpoints. Requests are paced by a token bucket and retried with
// exponential backoff on transport errors, 429 and 5xx.
type YahooProvider struct {
	client     *http.Client
	baseURL    string
	tracer     trace.Tracer
	limiter    *rate.Limiter
	maxElapsed time.Duration
	observer   UpstreamObserver
}

func NewYahooProvider(tracer trace.Tracer, opts YahooOptions) *YahooProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = YahooBaseURL
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 2
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxElapsed <= 0 {
		opts.MaxElapsed = 30 * time.Second
	}
	return &YahooProvider{
		client:     &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		tracer:     tracer,
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1),
		maxElapsed: opts.MaxElapsed,
		observer:   opts.Observer,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				LongName           string  `json:"longName"`
				ShortName          string  `json:"shortName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				DayHigh            float64 `json:"regularMarketDayHigh"`
				DayLow             float64 `json:"regularMarketDayLow"`
				Volume             float64 `json:"regularMarketVolume"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string  `json:"symbol"`
			ShortName                  string  `json:"shortName"`
			LongName                   string  `json:"longName"`
			RegularMarketPrice         float64 `json:"regularMarketPrice"`
			RegularMarketOpen          float64 `json:"regularMarketOpen"`
			RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
			RegularMarketDayHigh       float64 `json:"regularMarketDayHigh"`
			RegularMarketDayLow        float64 `json:"regularMarketDayLow"`
			RegularMarketVolume        float64 `json:"regularMarketVolume"`
			RegularMarketTime          int64   `json:"regularMarketTime"`
			MarketCap                  float64 `json:"marketCap"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"quoteResponse"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// FetchHistory returns bars for rangeParam (for example "1y") at interval,
// oldest first. Bars with a missing field are skipped.
func (p *YahooProvider) FetchHistory(ctx context.Context, symbol, interval, rangeParam string) ([]*domain.Candle, error) {
	ctx, span := p.tracer.Start(ctx, "yahoo.fetch-history")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol), attribute.String("interval", interval))

	q := url.Values{}
	q.Set("range", rangeParam)
	q.Set("interval", interval)
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", p.baseURL, url.PathEscape(symbol), q.Encode())

	body, err := p.doRequest(ctx, endpoint)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetch history for %s: %w", symbol, err)
	}

	var raw chartResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse history for %s: %w", symbol, err)
	}
	if raw.Chart.Error != nil {
		return nil, fmt.Errorf("history for %s: %s: %w", symbol, raw.Chart.Error.Description, domain.ErrUnknownSymbol)
	}
	if len(raw.Chart.Result) == 0 || len(raw.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no history for %s: %w", symbol, domain.ErrUnknownSymbol)
	}

	res := raw.Chart.Result[0]
	quote := res.Indicators.Quote[0]
	candles := make([]*domain.Candle, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		open, ok1 := at(quote.Open, i)
		high, ok2 := at(quote.High, i)
		low, ok3 := at(quote.Low, i)
		closePx, ok4 := at(quote.Close, i)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		volume, _ := at(quote.Volume, i)
		candles = append(candles, &domain.Candle{
			Symbol:   symbol,
			Interval: interval,
			OpenTime: time.Unix(ts, 0).UTC(),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closePx,
			Volume:   volume,
		})
	}
	span.SetAttributes(attribute.Int("candles", len(candles)))
	return candles, nil
}

// FetchQuote returns the latest quote together with the company profile
// carried in the same response.
func (p *YahooProvider) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, *domain.CompanyProfile, error) {
	ctx, span := p.tracer.Start(ctx, "yahoo.fetch-quote")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	endpoint := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", p.baseURL, url.QueryEscape(symbol))
	body, err := p.doRequest(ctx, endpoint)
	if err != nil {
		span.RecordError(err)
		return nil, nil, fmt.Errorf("fetch quote for %s: %w", symbol, err)
	}

	var raw quoteResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, fmt.Errorf("parse quote for %s: %w", symbol, err)
	}
	if raw.QuoteResponse.Error != nil {
		return nil, nil, fmt.Errorf("quote for %s: %s", symbol, raw.QuoteResponse.Error.Description)
	}
	if len(raw.QuoteResponse.Result) == 0 {
		return nil, nil, fmt.Errorf("no quote for %s: %w", symbol, domain.ErrUnknownSymbol)
	}

	r := raw.QuoteResponse.Result[0]
	if r.RegularMarketPrice <= 0 {
		return nil, nil, fmt.Errorf("quote for %s has price %v: %w", symbol, r.RegularMarketPrice, domain.ErrInvalidInput)
	}
	updated := time.Now().UTC()
	if r.RegularMarketTime > 0 {
		updated = time.Unix(r.RegularMarketTime, 0).UTC()
	}
	name := companyName(r.LongName, r.ShortName, r.Symbol)

	quote := &domain.Quote{
		Symbol:        r.Symbol,
		Name:          name,
		Price:         r.RegularMarketPrice,
		Open:          r.RegularMarketOpen,
		PreviousClose: r.RegularMarketPreviousClose,
		DayHigh:       r.RegularMarketDayHigh,
		DayLow:        r.RegularMarketDayLow,
		Volume:        r.RegularMarketVolume,
		MarketCap:     r.MarketCap,
		UpdatedAt:     updated,
	}
	profile := &domain.CompanyProfile{
		Symbol:    r.Symbol,
		Name:      name,
		MarketCap: r.MarketCap,
		UpdatedAt: updated,
	}
	return quote, profile, nil
}

func (p *YahooProvider) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	var body []byte
	operation := func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limit wait: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)

		resp, err := p.client.Do(req)
		if err != nil {
			p.observe("transport_error")
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			p.observe("transport_error")
			return err
		}
		switch {
		case resp.StatusCode == http.StatusOK:
			p.observe("ok")
			body = data
			return nil
		case resp.StatusCode == http.StatusNotFound:
			p.observe("not_found")
			// The chart endpoint answers 404 with a JSON error body for unknown symbols.
			body = data
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			p.observe("retryable")
			return &StatusError{StatusCode: resp.StatusCode}
		default:
			p.observe("rejected")
			return backoff.Permanent(&StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 200)})
		}
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = p.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func (p *YahooProvider) observe(outcome string) {
	if p.observer != nil {
		p.observer.UpstreamRequest(yahooName, outcome)
	}
}

// StatusError is a non-200 upstream answer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("yahoo API error %d", e.StatusCode)
	}
	return fmt.Sprintf("yahoo API error %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err carries the given upstream status.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

func at(values []*float64, i int) (float64, bool) {
	if i >= len(values) || values[i] == nil {
		return 0, false
	}
	return *values[i], true
}

func companyName(longName, shortName, symbol string) string {
	if longName != "" {
		return longName
	}
	if shortName != "" {
		return shortName
	}
	return symbol
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// RangeFor picks the smallest chart range that covers limit bars of
// interval.
func RangeFor(interval string, limit int) string {
	var days int
	switch interval {
	case "1h":
		// Roughly seven trading hours per session.
		days = limit/7 + 1
	case "1wk":
		days = limit * 7
	default:
		days = limit * 7 / 5
	}
	switch {
	case days <= 5:
		return "5d"
	case days <= 30:
		return "1mo"
	case days <= 90:
		return "3mo"
	case days <= 180:
		return "6mo"
	case days <= 365:
		return "1y"
	case days <= 730:
		return "2y"
	case days <= 1825:
		return "5y"
	}
	return "10y"
}

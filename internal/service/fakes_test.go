package service

import (
	"context"
	"encoding/json"
	"time"

	"trendcast/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var (
	testTracer = trace.NewNoopTracerProvider().Tracer("test")
	testLogger = zerolog.Nop()
)

type mockProvider struct {
	history    []*domain.Candle
	historyErr error
	quote      *domain.Quote
	profile    *domain.CompanyProfile
	quoteErr   error

	historyCalls int
	quoteCalls   int
	lastRange    string
}

func (m *mockProvider) FetchHistory(ctx context.Context, symbol, interval, rangeParam string) ([]*domain.Candle, error) {
	m.historyCalls++
	m.lastRange = rangeParam
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	return m.history, nil
}

func (m *mockProvider) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, *domain.CompanyProfile, error) {
	m.quoteCalls++
	if m.quoteErr != nil {
		return nil, nil, m.quoteErr
	}
	return m.quote, m.profile, nil
}

type mockCandleRepo struct {
	getResp []*domain.Candle
	getErr  error

	lastGetLimit int

	upsertArg   []*domain.Candle
	upsertErr   error
	upsertCalls int
}

func (m *mockCandleRepo) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error) {
	m.lastGetLimit = limit
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.getResp, nil
}

func (m *mockCandleRepo) UpsertCandles(ctx context.Context, candles []*domain.Candle) error {
	m.upsertCalls++
	m.upsertArg = candles
	return m.upsertErr
}

type mockProfileRepo struct {
	stored   map[string]*domain.CompanyProfile
	upserted []*domain.CompanyProfile
}

func (m *mockProfileRepo) GetProfile(ctx context.Context, symbol string) (*domain.CompanyProfile, error) {
	return m.stored[symbol], nil
}

func (m *mockProfileRepo) UpsertProfile(ctx context.Context, p *domain.CompanyProfile) error {
	m.upserted = append(m.upserted, p)
	return nil
}

type fakeRedis struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	setErr error
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = append([]byte(nil), v...)
	case string:
		f.data[key] = []byte(v)
	default:
		bytes, _ := json.Marshal(v)
		f.data[key] = bytes
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(string(v), nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func dailyCandles(symbol string, n int, start float64) []*domain.Candle {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*domain.Candle, n)
	for i := range out {
		p := start + float64(i)
		out[i] = &domain.Candle{
			Symbol: symbol, Interval: "1d", OpenTime: base.AddDate(0, 0, i),
			Open: p - 0.5, High: p + 1, Low: p - 1, Close: p, Volume: 1000,
		}
	}
	return out
}

func fixedRange(string, int) string { return "1y" }

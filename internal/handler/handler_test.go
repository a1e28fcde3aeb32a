package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trendcast/internal/advisor"
	"trendcast/internal/domain"
	"trendcast/internal/job"
	"trendcast/internal/ml/training"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type stubForecasts struct {
	forecast  domain.Forecast
	err       error
	requested string
}

func (s *stubForecasts) Forecast(ctx context.Context, symbol string) (domain.Forecast, error) {
	s.requested = symbol
	return s.forecast, s.err
}

type stubMarket struct {
	series    domain.PriceSeries
	quote     *domain.Quote
	err       error
	interval  string
	limit     int
	requested string
}

func (s *stubMarket) GetHistory(ctx context.Context, symbol, interval string, limit int) (domain.PriceSeries, error) {
	s.requested, s.interval, s.limit = symbol, interval, limit
	return s.series, s.err
}

func (s *stubMarket) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	s.requested = symbol
	return s.quote, s.err
}

type stubRecommender struct {
	rec advisor.Recommendation
	err error
}

func (s stubRecommender) Recommend(ctx context.Context, symbol string) (advisor.Recommendation, error) {
	return s.rec, s.err
}

type stubTrainer struct {
	result training.ModelTrainResult
	err    error
}

func (s stubTrainer) RunOnce(ctx context.Context) (training.ModelTrainResult, error) {
	return s.result, s.err
}

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func newTestHandler(f ForecastReader, m MarketReader, rec Recommender) *Handler {
	return New(trace.NewNoopTracerProvider().Tracer("handler-test"), f, m, rec)
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestGetForecast(t *testing.T) {
	f := &stubForecasts{forecast: domain.Forecast{
		Symbol: "MSFT", Stage: domain.StageIndicator, Direction: domain.DirectionUp,
		Confidence: 64.2, ConfidenceScale: domain.ScalePercent, CurrentPrice: 410,
		PredictedPrice: 411.5, PredictedChangePct: 0.37, Factors: []string{"MACD shows strong bullish momentum"},
	}}
	r := newTestRouter(newTestHandler(f, &stubMarket{}, nil))

	w := serve(r, http.MethodGet, "/api/forecast/microsoft")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MSFT", f.requested)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "UP", body["direction"])
	assert.Equal(t, "percent", body["confidence_scale"])
	assert.Equal(t, 411.5, body["predicted_price"])
}

func TestGetForecastErrorRecord(t *testing.T) {
	f := &stubForecasts{forecast: *domain.ErrorForecast(domain.InvalidPriceMessage)}
	r := newTestRouter(newTestHandler(f, &stubMarket{}, nil))

	w := serve(r, http.MethodGet, "/api/forecast/AAPL")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"error":"Invalid price data"}`, w.Body.String())
}

func TestGetForecastErrorStatuses(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("symbol: %w", domain.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("ZZZZ: %w", domain.ErrUnknownSymbol), http.StatusNotFound},
		{fmt.Errorf("short: %w", domain.ErrDataInsufficient), http.StatusUnprocessableEntity},
		{errors.New("redis exploded"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		r := newTestRouter(newTestHandler(&stubForecasts{err: tc.err}, &stubMarket{}, nil))
		w := serve(r, http.MethodGet, "/api/forecast/AAPL")
		assert.Equal(t, tc.want, w.Code, tc.err.Error())
	}
}

func TestGetCandles(t *testing.T) {
	bars := []*domain.Candle{
		{OpenTime: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{OpenTime: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), Open: 1.5, High: 2, Low: 1, Close: 1.8, Volume: 12},
	}
	series, err := domain.NewPriceSeries("AAPL", bars)
	require.NoError(t, err)
	m := &stubMarket{series: series}
	r := newTestRouter(newTestHandler(&stubForecasts{}, m, nil))

	w := serve(r, http.MethodGet, "/api/candles/aapl?interval=1wk&limit=50")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "AAPL", m.requested)
	assert.Equal(t, "1wk", m.interval)
	assert.Equal(t, 50, m.limit)

	var body struct {
		Symbol   string          `json:"symbol"`
		Interval string          `json:"interval"`
		Candles  []domain.Candle `json:"candles"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Candles, 2)

	w = serve(r, http.MethodGet, "/api/candles/AAPL")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.DefaultInterval, m.interval)
	assert.Equal(t, 100, m.limit)
}

func TestGetCandlesRejectsBadQuery(t *testing.T) {
	r := newTestRouter(newTestHandler(&stubForecasts{}, &stubMarket{}, nil))

	for _, path := range []string{
		"/api/candles/AAPL?interval=5m",
		"/api/candles/AAPL?limit=0",
		"/api/candles/AAPL?limit=5000",
		"/api/candles/AAPL?limit=abc",
		"/api/candles/no%20spaces",
	} {
		w := serve(r, http.MethodGet, path)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestGetQuote(t *testing.T) {
	m := &stubMarket{quote: &domain.Quote{Symbol: "KO", Price: 61.2}}
	r := newTestRouter(newTestHandler(&stubForecasts{}, m, nil))

	w := serve(r, http.MethodGet, "/api/quote/coca-cola")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "KO", m.requested)

	m.err = domain.ErrUnknownSymbol
	w = serve(r, http.MethodGet, "/api/quote/ZZZZ")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetRecommendation(t *testing.T) {
	rec := stubRecommender{rec: advisor.Recommendation{Symbol: "AAPL", Action: "HOLD", Text: "HOLD - Stable upward trend", Source: advisor.SourceRules}}
	r := newTestRouter(newTestHandler(&stubForecasts{}, &stubMarket{}, rec))

	w := serve(r, http.MethodGet, "/api/recommendation/AAPL")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"symbol":"AAPL","price":0,"action":"HOLD","recommendation":"HOLD - Stable upward trend","source":"rules"}`, w.Body.String())

	r = newTestRouter(newTestHandler(&stubForecasts{}, &stubMarket{}, nil))
	w = serve(r, http.MethodGet, "/api/recommendation/AAPL")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTriggerTraining(t *testing.T) {
	h := newTestHandler(&stubForecasts{}, &stubMarket{}, nil)
	r := newTestRouter(h)

	w := serve(r, http.MethodPost, "/api/models/train")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	h.SetTrainingRunner(stubTrainer{result: training.ModelTrainResult{
		ModelKey: "DEFAULT", Version: 3, MAE: 0.8, Promoted: false, PromoteError: errors.New("activate failed"),
	}})
	w = serve(r, http.MethodPost, "/api/models/train")
	require.Equal(t, http.StatusOK, w.Code)
	var body trainResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Version)
	assert.Equal(t, "activate failed", body.PromoteError)

	h.SetTrainingRunner(stubTrainer{err: job.ErrTrainingInProgress})
	assert.Equal(t, http.StatusConflict, serve(r, http.MethodPost, "/api/models/train").Code)

	h.SetTrainingRunner(stubTrainer{err: errors.New("not enough samples")})
	assert.Equal(t, http.StatusInternalServerError, serve(r, http.MethodPost, "/api/models/train").Code)
}

func TestRegisterRoutesAppliesMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	newTestHandler(&stubForecasts{}, &stubMarket{}, nil).RegisterRoutes(r, APIKeyAuth("k"))

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/forecast/AAPL").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health").Code)
}

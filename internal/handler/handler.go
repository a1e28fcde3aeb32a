package handler

import (
	"context"
	"time"

	"trendcast/internal/advisor"
	"trendcast/internal/domain"
	"trendcast/internal/ml/training"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
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

type TrainingRunner interface {
	RunOnce(ctx context.Context) (training.ModelTrainResult, error)
}

type NewsReader interface {
	Headlines(ctx context.Context, symbol string, limit int) ([]domain.Headline, error)
}

type AccuracyReader interface {
	Accuracy(ctx context.Context, since time.Time) ([]domain.StageAccuracy, error)
}

// HealthCheck reports on one dependency. A nil Check is skipped.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Handler struct {
	tracer      trace.Tracer
	forecasts   ForecastReader
	market      MarketReader
	recommender Recommender
	trainer     TrainingRunner
	accuracy    AccuracyReader
	news        NewsReader
	checks      []HealthCheck
}

func New(tracer trace.Tracer, forecasts ForecastReader, market MarketReader, recommender Recommender) *Handler {
	return &Handler{
		tracer:      tracer,
		forecasts:   forecasts,
		market:      market,
		recommender: recommender,
	}
}

// SetTrainingRunner enables POST /api/models/train.
func (h *Handler) SetTrainingRunner(r TrainingRunner) { h.trainer = r }

// SetAccuracyReader enables GET /api/accuracy.
func (h *Handler) SetAccuracyReader(r AccuracyReader) { h.accuracy = r }

// SetNewsReader enables GET /api/news/:symbol.
func (h *Handler) SetNewsReader(r NewsReader) { h.news = r }

// AddHealthCheck registers a dependency probed by /health.
func (h *Handler) AddHealthCheck(name string, check func(ctx context.Context) error) {
	h.checks = append(h.checks, HealthCheck{Name: name, Check: check})
}

// RegisterRoutes mounts the public routes on r and the data routes under
// /api behind the given middleware.
func (h *Handler) RegisterRoutes(r *gin.Engine, api ...gin.HandlerFunc) {
	r.GET("/health", h.Health)

	g := r.Group("/api", api...)
	g.GET("/forecast/:symbol", h.GetForecast)
	g.GET("/candles/:symbol", h.GetCandles)
	g.GET("/quote/:symbol", h.GetQuote)
	g.GET("/recommendation/:symbol", h.GetRecommendation)
	g.GET("/news/:symbol", h.GetNews)
	g.GET("/accuracy", h.GetAccuracy)
	g.POST("/models/train", h.TriggerTraining)
}

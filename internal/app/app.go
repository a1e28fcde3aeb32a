// Package app wires the service graph shared by the HTTP, MCP and SSH
// entrypoints.
package app

import (
	"time"

	"trendcast/internal/advisor"
	"trendcast/internal/config"
	"trendcast/internal/forecast"
	"trendcast/internal/job"
	"trendcast/internal/metrics"
	"trendcast/internal/ml/artifact"
	"trendcast/internal/ml/features"
	"trendcast/internal/ml/inference"
	"trendcast/internal/ml/modelcache"
	"trendcast/internal/ml/predictions"
	"trendcast/internal/ml/registry"
	"trendcast/internal/ml/training"
	"trendcast/internal/provider"
	"trendcast/internal/repository"
	"trendcast/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Deps are the connections opened by a main. Pool and Redis may be nil.
type Deps struct {
	Config  *config.Config
	Log     zerolog.Logger
	Tracer  trace.Tracer
	Metrics *metrics.Recorder
	Pool    *pgxpool.Pool
	Redis   *redis.Client
}

type App struct {
	Config    *config.Config
	Log       zerolog.Logger
	Tracer    trace.Tracer
	Metrics   *metrics.Recorder
	Market    *service.MarketService
	Forecasts *service.ForecastService
	Advisor   *advisor.AdvisorService
	News      *service.NewsService
	Models    *modelcache.Cache

	// Set only when Postgres is available.
	Conversations   *repository.ConversationRepository
	Outcomes        *predictions.Repository
	OutcomeResolver *job.OutcomeResolver
	Trainer         *training.Service
	TrainingJob     *job.TrainingJob

	Poller *job.HistoryPoller
}

// Build constructs every service. Without Postgres the market service goes
// upstream on each call and models load from files only; without Redis
// nothing is cached.
func Build(d Deps) (*App, error) {
	cfg := d.Config
	if d.Metrics == nil {
		d.Metrics = metrics.New(nil)
	}

	yahoo := provider.NewYahooProvider(d.Tracer, provider.YahooOptions{
		BaseURL:        cfg.YahooBaseURL,
		RequestsPerSec: cfg.ProviderRatePerSec,
		Observer:       d.Metrics,
	})

	var redisClient service.RedisClient
	if d.Redis != nil {
		redisClient = d.Redis
	}

	var (
		candleStore  service.CandleRepository
		profileStore service.ProfileRepository
		convStore    advisor.ConversationStore
		outcomeLog   service.OutcomeRecorder
		candleRepo   *repository.CandleRepository
		convRepo     *repository.ConversationRepository
		registryRepo *registry.Repository
		outcomeRepo  *predictions.Repository
	)
	if d.Pool != nil {
		candleRepo = repository.NewCandleRepository(d.Pool, d.Tracer)
		convRepo = repository.NewConversationRepository(d.Pool, d.Tracer)
		registryRepo = registry.NewRepository(d.Pool, d.Tracer)
		candleStore = candleRepo
		profileStore = repository.NewProfileRepository(d.Pool, d.Tracer)
		convStore = convRepo
		outcomeRepo = predictions.NewRepository(d.Pool, d.Tracer)
		outcomeLog = outcomeRepo
	}

	market := service.NewMarketService(d.Tracer, d.Log, yahoo, candleStore, profileStore, redisClient, provider.RangeFor)

	files := artifact.NewFileProvider(cfg.ModelDir)
	providers := artifact.Providers{files}
	if registryRepo != nil {
		providers = artifact.Providers{artifact.NewRegistryProvider(registryRepo, d.Tracer), files}
	}
	models := modelcache.New(providers, cfg.ModelKey)
	predictor := inference.NewService(d.Tracer, models, features.NewEngine())

	engine, err := forecast.New(predictor, forecast.Options{
		FactorCap:      cfg.FactorCap,
		ModelThreshold: cfg.ModelThreshold,
		Logger:         d.Log,
		Tracer:         d.Tracer,
		Observer:       d.Metrics,
	})
	if err != nil {
		return nil, err
	}

	forecasts := service.NewForecastService(d.Tracer, d.Log, market, engine, redisClient, service.ForecastOptions{
		Interval: cfg.HistoryInterval,
		Limit:    cfg.HistoryLimit,
		TTL:      time.Duration(cfg.CacheTTLSecs) * time.Second,
		Metrics:  d.Metrics,
		Outcomes: outcomeLog,
	})

	var llm advisor.LLMClient
	if cfg.OpenAIAPIKey != "" {
		llm = advisor.NewOpenAIClient(cfg.OpenAIAPIKey)
	}
	adv := advisor.NewAdvisorService(d.Tracer, d.Log, llm, market, forecasts, convStore,
		cfg.OpenAIModel, cfg.AdvisorMaxHistory, cfg.Watchlist)

	news := service.NewNewsService(d.Tracer, d.Log,
		provider.NewNewsProvider(d.Tracer, cfg.NewsFeedURL, d.Metrics), redisClient)
	adv.SetNewsSource(news)

	a := &App{
		Config:        cfg,
		Log:           d.Log,
		Tracer:        d.Tracer,
		Metrics:       d.Metrics,
		Market:        market,
		Forecasts:     forecasts,
		Advisor:       adv,
		News:          news,
		Models:        models,
		Conversations: convRepo,
		Outcomes:      outcomeRepo,
	}
	a.Poller = job.NewHistoryPoller(d.Tracer, d.Log, market, cfg.Watchlist,
		cfg.HistoryInterval, cfg.HistoryLimit, cfg.HistoryPollSecs)

	if outcomeRepo != nil {
		a.OutcomeResolver = job.NewOutcomeResolver(d.Tracer, d.Log, outcomeRepo, market, cfg.ModelThreshold, time.Hour)
	}
	if candleRepo != nil {
		a.Trainer = training.NewService(d.Tracer, d.Log, candleRepo, registryRepo, files, training.Config{
			Interval:     cfg.HistoryInterval,
			HistoryLimit: cfg.HistoryLimit * 2,
			Format:       cfg.ModelFormat,
		})
		a.TrainingJob = job.NewTrainingJob(d.Tracer, d.Log, a.Trainer, models, cfg.ModelKey, cfg.Watchlist, cfg.TrainHourUTC)
	}
	return a, nil
}

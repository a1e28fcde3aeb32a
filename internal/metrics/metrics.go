package metrics

import (
	"net/http"
	"time"

	"trendcast/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the service's Prometheus collectors. It satisfies
// forecast.Observer.
type Recorder struct {
	gatherer prometheus.Gatherer

	forecasts     *prometheus.CounterVec
	stageFailures *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	upstream      *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses a fresh registry, so
// tests can build as many recorders as they like.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Recorder{
		gatherer: reg,
		forecasts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendcast_forecasts_total",
				Help: "Forecasts produced, by fallback stage and direction",
			},
			[]string{"stage", "direction"},
		),
		stageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendcast_stage_failures_total",
				Help: "Fallback stages that deferred, by stage and reason",
			},
			[]string{"stage", "reason"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendcast_forecast_cache_lookups_total",
				Help: "Forecast cache lookups by result",
			},
			[]string{"result"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trendcast_forecast_duration_seconds",
				Help:    "End-to-end forecast latency including history loading",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		upstream: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendcast_upstream_requests_total",
				Help: "Market data provider requests by outcome",
			},
			[]string{"provider", "outcome"},
		),
	}
}

func (r *Recorder) StageSucceeded(stage domain.Stage, direction domain.Direction) {
	r.forecasts.WithLabelValues(string(stage), string(direction)).Inc()
}

func (r *Recorder) StageFailed(stage domain.Stage, reason string) {
	r.stageFailures.WithLabelValues(string(stage), reason).Inc()
}

func (r *Recorder) CacheHit()  { r.cacheLookups.WithLabelValues("hit").Inc() }
func (r *Recorder) CacheMiss() { r.cacheLookups.WithLabelValues("miss").Inc() }

// ObserveForecast records latency under the stage that answered, or
// "error" for an error record.
func (r *Recorder) ObserveForecast(stage string, d time.Duration) {
	if stage == "" {
		stage = "error"
	}
	r.latency.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) UpstreamRequest(provider, outcome string) {
	r.upstream.WithLabelValues(provider, outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

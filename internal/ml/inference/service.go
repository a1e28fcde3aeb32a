package inference

import (
	"context"
	"fmt"
	"math"

	"trendcast/internal/domain"
	"trendcast/internal/ml/artifact"
	"trendcast/internal/ml/features"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ArtifactResolver returns the bundle to use for a ticker, falling back to
// the default bundle. It reports domain.ErrModelUnavailable when neither
// exists.
type ArtifactResolver interface {
	Resolve(ctx context.Context, symbol string) (*artifact.Artifact, error)
}

type Prediction struct {
	ChangePct float64
	ModelKey  string
	Version   int
	Format    string
}

// Service turns a price series into a model prediction of the next
// period's percent change.
type Service struct {
	tracer   trace.Tracer
	resolver ArtifactResolver
	features *features.Engine
}

func NewService(tracer trace.Tracer, resolver ArtifactResolver, engine *features.Engine) *Service {
	if engine == nil {
		engine = features.NewEngine()
	}
	return &Service{tracer: tracer, resolver: resolver, features: engine}
}

func (s *Service) Predict(ctx context.Context, series domain.PriceSeries) (Prediction, error) {
	ctx, span := s.tracer.Start(ctx, "model-inference.predict")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", series.Symbol))

	if s.resolver == nil {
		return Prediction{}, fmt.Errorf("no model resolver: %w", domain.ErrModelUnavailable)
	}
	a, err := s.resolver.Resolve(ctx, series.Symbol)
	if err != nil {
		return Prediction{}, err
	}
	span.SetAttributes(
		attribute.String("model_key", a.Key),
		attribute.Int("model_version", a.Version),
		attribute.String("artifact_format", a.Format),
	)

	vector, err := s.features.Latest(series)
	if err != nil {
		return Prediction{}, err
	}
	if n := len(a.FeatureNames); n > 0 && n != len(vector) {
		return Prediction{}, fmt.Errorf("model %s expects %d features, engine built %d: %w",
			a.Key, n, len(vector), domain.ErrModelUnavailable)
	}

	pct, err := a.PredictChangePct(vector)
	if err != nil {
		return Prediction{}, fmt.Errorf("model %s v%d: %w: %w", a.Key, a.Version, domain.ErrComputation, err)
	}
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return Prediction{}, fmt.Errorf("model %s v%d produced %v: %w", a.Key, a.Version, pct, domain.ErrComputation)
	}
	return Prediction{
		ChangePct: pct,
		ModelKey:  a.Key,
		Version:   a.Version,
		Format:    a.Format,
	}, nil
}

package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"trendcast/internal/domain"
	"trendcast/internal/factors"
	"trendcast/internal/fusion"
	"trendcast/internal/ml/inference"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultModelThreshold is the predicted move, in percent, a model must
// exceed to call a direction.
const DefaultModelThreshold = 1.0

// ModelPredictor runs a trained model on a price series.
type ModelPredictor interface {
	Predict(ctx context.Context, series domain.PriceSeries) (inference.Prediction, error)
}

// Observer is told about every stage attempt.
type Observer interface {
	StageSucceeded(stage domain.Stage, direction domain.Direction)
	StageFailed(stage domain.Stage, reason string)
}

// Request is one forecast call. Optional pointers default from the series:
// CurrentPrice to the last close, Open to the last bar's open and ChangePct
// to the change between the last two closes. The price is rounded to cents
// before any stage runs.
type Request struct {
	Symbol       string
	Series       domain.PriceSeries
	CurrentPrice *float64
	Open         *float64
	ChangePct    *float64
	Profile      *domain.CompanyProfile
}

// Input is a Request with defaults applied and the price validated.
type Input struct {
	Symbol    string
	Series    domain.PriceSeries
	Price     float64
	Open      float64
	ChangePct float64
	Profile   *domain.CompanyProfile
	Now       time.Time
}

type Options struct {
	FactorCap      int
	ModelThreshold float64
	Weights        fusion.Weights
	Random         RandomSource
	Clock          func() time.Time
	Logger         zerolog.Logger
	Tracer         trace.Tracer
	Observer       Observer
}

// Engine runs the fallback chain: model, then indicator fusion, then the
// momentum rule. The first stage that succeeds produces the forecast.
type Engine struct {
	stages   []Stage
	clock    func() time.Time
	log      zerolog.Logger
	tracer   trace.Tracer
	observer Observer
}

// New builds the engine. model may be nil, in which case the model stage
// always defers. The only error is an invalid weight set.
func New(model ModelPredictor, opts Options) (*Engine, error) {
	if opts.Weights == (fusion.Weights{}) {
		opts.Weights = fusion.DefaultWeights()
	}
	fuser, err := fusion.NewEngine(opts.Weights)
	if err != nil {
		return nil, err
	}
	if opts.ModelThreshold <= 0 {
		opts.ModelThreshold = DefaultModelThreshold
	}
	if opts.Random == nil {
		opts.Random = DefaultRandom()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Tracer == nil {
		opts.Tracer = trace.NewNoopTracerProvider().Tracer("forecast")
	}
	explainer := factors.NewExplainer(opts.FactorCap)

	return &Engine{
		stages: []Stage{
			&ModelStage{model: model, threshold: opts.ModelThreshold, explainer: explainer},
			&IndicatorStage{fuser: fuser, explainer: explainer},
			&RuleStage{random: opts.Random, explainer: explainer},
		},
		clock:    opts.Clock,
		log:      opts.Logger,
		tracer:   opts.Tracer,
		observer: opts.Observer,
	}, nil
}

// Forecast never fails. An invalid current price yields the error-only
// record; otherwise the first successful stage's forecast is returned.
func (e *Engine) Forecast(ctx context.Context, req Request) domain.Forecast {
	ctx, span := e.tracer.Start(ctx, "forecast.run")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", req.Symbol))

	in, err := e.prepare(req)
	if err != nil {
		e.log.Debug().Err(err).Str("symbol", req.Symbol).Msg("forecast rejected")
		return *domain.ErrorForecast(domain.InvalidPriceMessage)
	}

	for _, stage := range e.stages {
		out := e.runStage(ctx, stage, in)
		if out.OK() {
			f := *out.Forecast
			f.Symbol = in.Symbol
			f.Stage = stage.Name()
			f.CurrentPrice = in.Price
			f.GeneratedAt = in.Now
			span.SetAttributes(attribute.String("stage", string(f.Stage)), attribute.String("direction", string(f.Direction)))
			if e.observer != nil {
				e.observer.StageSucceeded(f.Stage, f.Direction)
			}
			return f
		}
		reason := Reason(out.Err)
		e.log.Debug().Err(out.Err).Str("symbol", in.Symbol).Str("stage", string(stage.Name())).Str("reason", reason).Msg("forecast stage deferred")
		if e.observer != nil {
			e.observer.StageFailed(stage.Name(), reason)
		}
	}
	// The rule stage accepts every validated input, so this is unreachable
	// unless a stage panics on every path.
	return *domain.ErrorForecast("no forecast available")
}

func (e *Engine) runStage(ctx context.Context, stage Stage, in Input) (out Outcome) {
	ctx, span := e.tracer.Start(ctx, "forecast.stage")
	defer span.End()
	span.SetAttributes(attribute.String("stage", string(stage.Name())))

	defer func() {
		if r := recover(); r != nil {
			out = Failure(fmt.Errorf("stage %s panicked: %v: %w", stage.Name(), r, domain.ErrComputation))
		}
	}()
	out = stage.Run(ctx, in)
	if out.OK() && !validForecast(out.Forecast) {
		out = Failure(fmt.Errorf("stage %s produced non-finite output: %w", stage.Name(), domain.ErrComputation))
	}
	return out
}

func (e *Engine) prepare(req Request) (Input, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		symbol = req.Series.Symbol
	}
	last, hasLast := req.Series.Last()

	var price float64
	switch {
	case req.CurrentPrice != nil:
		price = *req.CurrentPrice
	case hasLast:
		price = last.Close
	default:
		return Input{}, fmt.Errorf("no current price: %w", domain.ErrInvalidInput)
	}
	if !finite(price) || price <= 0 {
		return Input{}, fmt.Errorf("current price %v: %w", price, domain.ErrInvalidInput)
	}
	// Stages price off the same cents the record reports.
	price = fusion.Round2(price)
	if price <= 0 {
		return Input{}, fmt.Errorf("current price rounds to zero: %w", domain.ErrInvalidInput)
	}

	open := 0.0
	if req.Open != nil {
		open = *req.Open
	} else if hasLast {
		open = last.Open
	}
	if !finite(open) || open < 0 {
		open = 0
	}

	change := req.Series.ChangePct()
	if req.ChangePct != nil {
		change = *req.ChangePct
	}
	if !finite(change) {
		change = 0
	}

	return Input{
		Symbol:    symbol,
		Series:    req.Series,
		Price:     price,
		Open:      open,
		ChangePct: change,
		Profile:   req.Profile,
		Now:       e.clock().UTC(),
	}, nil
}

// Reason maps a stage error to a short label for logs and metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrDataInsufficient):
		return "data_insufficient"
	case errors.Is(err, domain.ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, domain.ErrComputation):
		return "computation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "error"
}

func validForecast(f *domain.Forecast) bool {
	return f != nil &&
		finite(f.Confidence) &&
		finite(f.PredictedPrice) &&
		finite(f.PredictedChangePct) &&
		len(f.Factors) > 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

package forecast

import (
	"context"
	"fmt"
	"math"

	"trendcast/internal/domain"
	"trendcast/internal/factors"
	"trendcast/internal/fusion"
	"trendcast/internal/ta"
)

const (
	// TechnicalPoints is the length of the trailing chart series.
	TechnicalPoints = 20

	// MomentumWeight scales the recent change into the rule-stage prediction.
	MomentumWeight = 0.1
	// NoiseAmplitude bounds the rule-stage noise to (-0.25, 0.25).
	NoiseAmplitude = 0.25
)

// Stage is one strategy in the fallback chain.
type Stage interface {
	Name() domain.Stage
	Run(ctx context.Context, in Input) Outcome
}

// Outcome is either a forecast or the reason the stage deferred.
type Outcome struct {
	Forecast *domain.Forecast
	Err      error
}

func Success(f *domain.Forecast) Outcome { return Outcome{Forecast: f} }

func Failure(err error) Outcome { return Outcome{Err: err} }

func (o Outcome) OK() bool { return o.Err == nil && o.Forecast != nil }

// ModelStage asks a trained model for the next change in percent.
type ModelStage struct {
	model     ModelPredictor
	threshold float64
	explainer *factors.Explainer
}

func (s *ModelStage) Name() domain.Stage { return domain.StageModel }

func (s *ModelStage) Run(ctx context.Context, in Input) Outcome {
	if s.model == nil {
		return Failure(fmt.Errorf("no model predictor: %w", domain.ErrModelUnavailable))
	}
	pred, err := s.model.Predict(ctx, in.Series)
	if err != nil {
		return Failure(err)
	}
	if !finite(pred.ChangePct) {
		return Failure(fmt.Errorf("model change %v: %w", pred.ChangePct, domain.ErrComputation))
	}

	direction := fusion.DirectionWithThreshold(pred.ChangePct, s.threshold)
	var snap *ta.Snapshot
	if in.Series.Len() > 0 {
		if latest, ok := ta.Compute(in.Series.Closes()).Latest(); ok {
			snap = &latest
		}
	}
	return Success(&domain.Forecast{
		Direction:          direction,
		Confidence:         fusion.PriceDiffConfidence(pred.ChangePct),
		ConfidenceScale:    domain.ScaleUnit,
		PredictedPrice:     fusion.PredictedPrice(in.Price, pred.ChangePct),
		PredictedChangePct: pred.ChangePct,
		Factors:            s.explainer.Explain(explainInput(in, snap, direction)),
		ModelVersion:       fmt.Sprintf("%s@v%d", pred.ModelKey, pred.Version),
	})
}

// IndicatorStage fuses RSI, MACD and Bollinger polarities. It needs at least
// the MACD slow window of history.
type IndicatorStage struct {
	fuser     *fusion.Engine
	explainer *factors.Explainer
}

func (s *IndicatorStage) Name() domain.Stage { return domain.StageIndicator }

func (s *IndicatorStage) Run(_ context.Context, in Input) Outcome {
	if in.Series.Len() < ta.MACDSlow {
		return Failure(fmt.Errorf("indicator fusion needs %d bars, have %d: %w",
			ta.MACDSlow, in.Series.Len(), domain.ErrDataInsufficient))
	}
	closes := in.Series.Closes()
	set := ta.Compute(closes)
	snap, ok := set.Latest()
	if !ok {
		return Failure(fmt.Errorf("empty indicator set: %w", domain.ErrDataInsufficient))
	}
	res, err := s.fuser.Fuse(snap)
	if err != nil {
		return Failure(fmt.Errorf("fuse: %w: %w", domain.ErrComputation, err))
	}
	if !finite(res.Score) {
		return Failure(fmt.Errorf("weighted signal %v: %w", res.Score, domain.ErrComputation))
	}

	return Success(&domain.Forecast{
		Direction:          res.Direction,
		Confidence:         res.Confidence,
		ConfidenceScale:    domain.ScalePercent,
		PredictedPrice:     fusion.PredictedPrice(in.Price, res.ChangePct),
		PredictedChangePct: res.ChangePct,
		Factors:            s.explainer.Explain(explainInput(in, &snap, res.Direction)),
		Analysis:           analysis(in.Price, closes, snap),
		Technical:          technical(in.Series, set, TechnicalPoints),
	})
}

// RuleStage is the last resort: a damped momentum term plus bounded noise.
// It succeeds for any validated input.
type RuleStage struct {
	random    RandomSource
	explainer *factors.Explainer
}

func (s *RuleStage) Name() domain.Stage { return domain.StageRule }

func (s *RuleStage) Run(_ context.Context, in Input) Outcome {
	noise := (s.random.Float64()*2 - 1) * NoiseAmplitude
	pct := in.ChangePct*MomentumWeight + noise
	direction := fusion.Direction(pct)
	return Success(&domain.Forecast{
		Direction:          direction,
		Confidence:         fusion.PriceDiffConfidence(pct),
		ConfidenceScale:    domain.ScaleUnit,
		PredictedPrice:     fusion.PredictedPrice(in.Price, pct),
		PredictedChangePct: pct,
		Factors:            s.explainer.Explain(explainInput(in, nil, direction)),
	})
}

func explainInput(in Input, snap *ta.Snapshot, direction domain.Direction) factors.Input {
	return factors.Input{
		Price:      in.Price,
		Open:       in.Open,
		Profile:    in.Profile,
		Indicators: snap,
		Volumes:    in.Series.Volumes(),
		Direction:  direction,
	}
}

func analysis(price float64, closes []float64, snap ta.Snapshot) *domain.Analysis {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range closes {
		lo = math.Min(lo, c)
		hi = math.Max(hi, c)
	}
	a := &domain.Analysis{
		CurrentPrice: fusion.Round2(price),
		AvgPrice:     fusion.Round2(ta.Mean(closes)),
		StdPrice:     fusion.Round2(ta.SampleStd(closes)),
		MinPrice:     fusion.Round2(lo),
		MaxPrice:     fusion.Round2(hi),
		LatestMACD:   snap.MACDHist,
		LatestBBPos:  snap.BBPos,
	}
	if snap.RSIAvailable {
		rsi := snap.RSI
		a.LatestRSI = &rsi
	}
	return a
}

func technical(series domain.PriceSeries, set ta.IndicatorSet, n int) *domain.Technical {
	tail := series.Tail(n)
	return &domain.Technical{
		Dates:      tail.Times(),
		Close:      tail.Closes(),
		RSI:        ta.Tail(set.RSI, n),
		MACD:       ta.Tail(set.MACD, n),
		MACDSignal: ta.Tail(set.MACDSignal, n),
		MACDHist:   ta.Tail(set.MACDHist, n),
		BBUpper:    ta.Tail(set.BBUpper, n),
		BBMiddle:   ta.Tail(set.BBMiddle, n),
		BBLower:    ta.Tail(set.BBLower, n),
	}
}

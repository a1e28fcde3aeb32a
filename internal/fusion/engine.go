package fusion

import (
	"errors"
	"fmt"
	"math"

	"trendcast/internal/domain"
	"trendcast/internal/ta"
)

const (
	SignalRSI       = "rsi"
	SignalMACD      = "macd"
	SignalBollinger = "bollinger"

	// WeightTolerance bounds how far the weights of one pass may drift from 1.
	WeightTolerance = 1e-9
	// DeadZone is the band around zero that maps to NEUTRAL.
	DeadZone = 0.1
	// IndicatorScale converts a weighted signal into a predicted change in percent.
	IndicatorScale = 2.0

	rsiOverbought = 70.0
	rsiOversold   = 30.0
	bbUpperZone   = 0.8
	bbLowerZone   = 0.2
)

var ErrWeights = errors.New("signal weights must be non-negative and sum to 1")

// Signal is one named, weighted ternary contribution to a fusion pass.
type Signal struct {
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`
	Polarity int     `json:"polarity"`
}

type Weights struct {
	RSI       float64
	MACD      float64
	Bollinger float64
}

func DefaultWeights() Weights {
	return Weights{RSI: 0.3, MACD: 0.4, Bollinger: 0.3}
}

func (w Weights) Validate() error {
	if w.RSI < 0 || w.MACD < 0 || w.Bollinger < 0 {
		return ErrWeights
	}
	if sum := w.RSI + w.MACD + w.Bollinger; math.Abs(sum-1) > WeightTolerance {
		return fmt.Errorf("%w: got %.12f", ErrWeights, sum)
	}
	return nil
}

// Result is the outcome of one fusion pass on the indicator path.
type Result struct {
	Signals    []Signal
	Score      float64
	Direction  domain.Direction
	Confidence float64
	ChangePct  float64
}

type Engine struct {
	weights Weights
}

func NewEngine(weights Weights) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Engine{weights: weights}, nil
}

func (e *Engine) Weights() Weights { return e.weights }

// Fuse normalizes a snapshot into signals and scores it. An unavailable RSI
// contributes polarity 0.
func (e *Engine) Fuse(snap ta.Snapshot) (Result, error) {
	signals := []Signal{
		{Name: SignalRSI, Weight: e.weights.RSI, Polarity: RSIPolarity(snap.RSI, snap.RSIAvailable)},
		{Name: SignalMACD, Weight: e.weights.MACD, Polarity: MACDPolarity(snap.MACDHist)},
		{Name: SignalBollinger, Weight: e.weights.Bollinger, Polarity: BollingerPolarity(snap.BBPos)},
	}
	score, err := WeightedSignal(signals)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Signals:    signals,
		Score:      score,
		Direction:  Direction(score),
		Confidence: IndicatorConfidence(score),
		ChangePct:  score * IndicatorScale,
	}, nil
}

// WeightedSignal sums weight*polarity after checking the weights sum to 1.
func WeightedSignal(signals []Signal) (float64, error) {
	var weightSum, score float64
	for _, s := range signals {
		if s.Weight < 0 || s.Polarity < -1 || s.Polarity > 1 {
			return 0, fmt.Errorf("signal %s: %w", s.Name, ErrWeights)
		}
		weightSum += s.Weight
		score += s.Weight * float64(s.Polarity)
	}
	if math.Abs(weightSum-1) > WeightTolerance {
		return 0, fmt.Errorf("%w: got %.12f", ErrWeights, weightSum)
	}
	return score, nil
}

func RSIPolarity(rsi float64, available bool) int {
	switch {
	case !available || math.IsNaN(rsi):
		return 0
	case rsi > rsiOverbought:
		return -1
	case rsi < rsiOversold:
		return 1
	}
	return 0
}

func MACDPolarity(hist float64) int {
	switch {
	case hist > 0:
		return 1
	case hist < 0:
		return -1
	}
	return 0
}

func BollingerPolarity(bbPos float64) int {
	switch {
	case bbPos > bbUpperZone:
		return -1
	case bbPos < bbLowerZone:
		return 1
	}
	return 0
}

// Direction applies the DeadZone threshold.
func Direction(score float64) domain.Direction {
	return DirectionWithThreshold(score, DeadZone)
}

func DirectionWithThreshold(value, threshold float64) domain.Direction {
	if value > threshold {
		return domain.DirectionUp
	}
	if value < -threshold {
		return domain.DirectionDown
	}
	return domain.DirectionNeutral
}

package scaler

import (
	"errors"
	"fmt"
	"math"
)

// MinMax maps each feature and the target into [0, 1] using ranges fitted
// on training data. Values outside the fitted range extrapolate linearly.
type MinMax struct {
	FeatureMin []float64 `json:"feature_min"`
	FeatureMax []float64 `json:"feature_max"`
	TargetMin  float64   `json:"target_min"`
	TargetMax  float64   `json:"target_max"`
}

func Fit(samples [][]float64, targets []float64) (*MinMax, error) {
	if len(samples) == 0 || len(samples) != len(targets) {
		return nil, errors.New("invalid scaler dataset")
	}
	width := len(samples[0])
	if width == 0 {
		return nil, errors.New("empty feature vectors")
	}
	m := &MinMax{
		FeatureMin: make([]float64, width),
		FeatureMax: make([]float64, width),
		TargetMin:  math.Inf(1),
		TargetMax:  math.Inf(-1),
	}
	for j := 0; j < width; j++ {
		m.FeatureMin[j] = math.Inf(1)
		m.FeatureMax[j] = math.Inf(-1)
	}
	for i, row := range samples {
		if len(row) != width {
			return nil, fmt.Errorf("sample %d has %d features, want %d", i, len(row), width)
		}
		for j, v := range row {
			m.FeatureMin[j] = math.Min(m.FeatureMin[j], v)
			m.FeatureMax[j] = math.Max(m.FeatureMax[j], v)
		}
		m.TargetMin = math.Min(m.TargetMin, targets[i])
		m.TargetMax = math.Max(m.TargetMax, targets[i])
	}
	return m, nil
}

// Symmetrize widens the target range to [-r, r] with r = max(|min|, |max|),
// so a scaled target of 0.5 always maps back to zero change.
func (m *MinMax) Symmetrize() {
	r := math.Max(math.Abs(m.TargetMin), math.Abs(m.TargetMax))
	m.TargetMin = -r
	m.TargetMax = r
}

func (m *MinMax) Width() int { return len(m.FeatureMin) }

func (m *MinMax) Validate() error {
	if m == nil || len(m.FeatureMin) == 0 || len(m.FeatureMin) != len(m.FeatureMax) {
		return errors.New("invalid scaler")
	}
	if m.TargetMax < m.TargetMin {
		return errors.New("invalid scaler target range")
	}
	return nil
}

func (m *MinMax) Transform(x []float64) ([]float64, error) {
	if len(x) != len(m.FeatureMin) {
		return nil, fmt.Errorf("scaler expects %d features, got %d", len(m.FeatureMin), len(x))
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = scale(v, m.FeatureMin[j], m.FeatureMax[j])
	}
	return out, nil
}

func (m *MinMax) TransformTarget(y float64) float64 {
	return scale(y, m.TargetMin, m.TargetMax)
}

func (m *MinMax) InverseTarget(y float64) float64 {
	return m.TargetMin + y*(m.TargetMax-m.TargetMin)
}

func scale(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}

// Package logreg fits a binary up/down classifier on min-max scaled
// features. Its up probability stands in for the scaled target, so a
// symmetric target scaler maps p back to (2p-1) times the fitted move size.
package logreg

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

type TrainOptions struct {
	LearningRate float64
	Epochs       int
	L2           float64
	// Balanced reweights the classes so a run of up days does not pull
	// every prediction toward up.
	Balanced bool
}

type Artifact struct {
	FeatureNames []string  `json:"feature_names,omitempty"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	UpRate       float64   `json:"up_rate"`
	Options      struct {
		LearningRate float64 `json:"learning_rate"`
		Epochs       int     `json:"epochs"`
		L2           float64 `json:"l2"`
		Balanced     bool    `json:"balanced"`
	} `json:"options"`
}

type Model struct {
	artifact Artifact
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		LearningRate: 0.5,
		Epochs:       600,
		L2:           0.0005,
		Balanced:     true,
	}
}

// Labels marks a forward return as up (1) when it exceeds band percent and
// as not-up (0) otherwise.
func Labels(returns []float64, band float64) []float64 {
	out := make([]float64, len(returns))
	for i, r := range returns {
		if r > band {
			out[i] = 1
		}
	}
	return out
}

func Train(samples [][]float64, labels []float64, featureNames []string, opts TrainOptions) (*Model, error) {
	if len(samples) == 0 || len(samples) != len(labels) {
		return nil, errors.New("invalid training dataset")
	}
	width := len(samples[0])
	if width == 0 {
		return nil, errors.New("empty feature vectors")
	}
	defaults := DefaultTrainOptions()
	if opts.LearningRate <= 0 {
		opts.LearningRate = defaults.LearningRate
	}
	if opts.Epochs <= 0 {
		opts.Epochs = defaults.Epochs
	}
	if opts.L2 < 0 {
		opts.L2 = defaults.L2
	}

	ups := 0
	for _, y := range labels {
		if y != 0 && y != 1 {
			return nil, fmt.Errorf("label %v is not 0 or 1", y)
		}
		if y == 1 {
			ups++
		}
	}
	n := float64(len(samples))
	upWeight, downWeight := 1.0, 1.0
	if opts.Balanced && ups > 0 && ups < len(labels) {
		upWeight = n / (2 * float64(ups))
		downWeight = n / (2 * float64(len(labels)-ups))
	}

	weights := make([]float64, width)
	bias := 0.0
	grads := make([]float64, width)
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		clear(grads)
		gradBias := 0.0
		for i, x := range samples {
			if len(x) != width {
				return nil, fmt.Errorf("sample %d has %d features, want %d", i, len(x), width)
			}
			w := downWeight
			if labels[i] == 1 {
				w = upWeight
			}
			residual := w * (sigmoid(dot(weights, x)+bias) - labels[i])
			for j := range grads {
				grads[j] += residual * x[j]
			}
			gradBias += residual
		}
		for j := range weights {
			weights[j] -= opts.LearningRate * (grads[j]/n + opts.L2*weights[j])
		}
		bias -= opts.LearningRate * gradBias / n
	}

	if len(featureNames) != width {
		featureNames = nil
	}
	a := Artifact{
		FeatureNames: featureNames,
		Weights:      weights,
		Bias:         bias,
		UpRate:       float64(ups) / n,
	}
	a.Options.LearningRate = opts.LearningRate
	a.Options.Epochs = opts.Epochs
	a.Options.L2 = opts.L2
	a.Options.Balanced = opts.Balanced
	return &Model{artifact: a}, nil
}

// Predict returns the probability that the next move is up.
func (m *Model) Predict(sample []float64) (float64, error) {
	if m == nil {
		return 0, errors.New("nil model")
	}
	if len(sample) != len(m.artifact.Weights) {
		return 0, fmt.Errorf("logreg expects %d features, got %d", len(m.artifact.Weights), len(sample))
	}
	return sigmoid(dot(m.artifact.Weights, sample) + m.artifact.Bias), nil
}

// UpRate is the share of up labels the model was fitted on.
func (m *Model) UpRate() float64 { return m.artifact.UpRate }

func (m *Model) MarshalBinary() ([]byte, error) {
	if m == nil {
		return nil, errors.New("nil model")
	}
	return json.Marshal(m.artifact)
}

func UnmarshalBinary(data []byte) (*Model, error) {
	if len(data) == 0 {
		return nil, errors.New("empty artifact")
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	if len(a.Weights) == 0 {
		return nil, errors.New("invalid artifact: no weights")
	}
	if a.FeatureNames != nil && len(a.FeatureNames) != len(a.Weights) {
		return nil, fmt.Errorf("invalid artifact: %d names for %d weights", len(a.FeatureNames), len(a.Weights))
	}
	return &Model{artifact: a}, nil
}

func sigmoid(x float64) float64 {
	switch {
	case x > 35:
		return 1
	case x < -35:
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
